package service

import (
	"errors"
	"log"
	"strings"
	"sync"

	"pocketspeech/ai"
)

// ErrGenerationActive попытка второй одновременной генерации:
// single-flight, очереди нет
var ErrGenerationActive = errors.New("generation already active")

// GenerationChunk порция синтезированного звука с прогрессом
type GenerationChunk struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sampleRate"`
	Progress   float64   `json:"progress"` // 0.0-1.0
}

// Synthesizer то, что генератору нужно от синтезатора.
// Частота дискретизации приходит с каждой порцией звука.
type Synthesizer interface {
	Generate(text string, speakerID int, speed float32) (ai.Audio, error)
}

// Generator фоновая генерация речи по предложениям.
// Одновременно не больше одной генерации; отмена кооперативная:
// флаг проверяется на границах предложений, внутри вызова движка
// прервать нельзя, поэтому задержка отмены ограничена длиной
// предложения.
type Generator struct {
	synth Synthesizer

	// OnChunk вызывается на каждую готовую порцию звука
	OnChunk func(chunk GenerationChunk)
	// OnDone вызывается ровно один раз на завершение запуска
	OnDone func(cancelled bool, err error)

	mu        sync.Mutex
	running   bool
	cancelled bool
}

// NewGenerator создаёт генератор поверх синтезатора
func NewGenerator(synth Synthesizer) *Generator {
	return &Generator{synth: synth}
}

// Start запускает фоновую генерацию. Если генерация уже идёт,
// немедленно возвращает ErrGenerationActive.
func (g *Generator) Start(text string, speakerID int, speed float32) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return ErrGenerationActive
	}
	g.running = true
	g.cancelled = false
	g.mu.Unlock()

	go g.run(text, speakerID, speed)
	return nil
}

// Cancel выставляет флаг отмены. Не прерывает движок: флаг
// проверяется на границе очередного предложения.
func (g *Generator) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.cancelled = true
	}
}

// IsRunning сообщает, идёт ли генерация
func (g *Generator) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Generator) isCancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

// finish снимает running и шлёт ровно одно терминальное событие
func (g *Generator) finish(err error) {
	g.mu.Lock()
	cancelled := g.cancelled
	g.running = false
	g.cancelled = false
	g.mu.Unlock()

	if g.OnDone != nil {
		g.OnDone(cancelled, err)
	}
}

func (g *Generator) run(text string, speakerID int, speed float32) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		g.finish(nil)
		return
	}

	for i, sentence := range sentences {
		if g.isCancelled() {
			log.Printf("Generator: cancelled at sentence %d/%d", i+1, len(sentences))
			g.finish(nil)
			return
		}

		audio, err := g.synth.Generate(sentence, speakerID, speed)
		if err != nil {
			log.Printf("Generator: engine error: %v", err)
			g.finish(err)
			return
		}

		// Отмена, пришедшая во время вызова движка: порцию не шлём
		if g.isCancelled() {
			g.finish(nil)
			return
		}

		if g.OnChunk != nil {
			g.OnChunk(GenerationChunk{
				Samples:    audio.Samples,
				SampleRate: audio.SampleRate,
				Progress:   float64(i+1) / float64(len(sentences)),
			})
		}
	}
	g.finish(nil)
}

// SplitSentences режет текст на предложения для пошаговой генерации.
// Слишком короткие фрагменты приклеиваются к соседним, чтобы движок
// не получал обрывки из одного-двух знаков.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var raw []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		switch r {
		case '.', '!', '?', '…', '\n':
			if s := strings.TrimSpace(b.String()); s != "" {
				raw = append(raw, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		raw = append(raw, s)
	}

	const minLen = 3
	var sentences []string
	for _, s := range raw {
		if len(sentences) > 0 && len([]rune(s)) < minLen {
			sentences[len(sentences)-1] += " " + s
			continue
		}
		sentences = append(sentences, s)
	}
	return sentences
}
