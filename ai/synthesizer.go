package ai

import (
	"fmt"
	"log"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"pocketspeech/models"
)

// Audio порция синтезированного звука
type Audio struct {
	Samples    []float32
	SampleRate int
}

// Synthesizer обёртка над OfflineTts движка sherpa-onnx
type Synthesizer struct {
	kind     models.TtsKind
	provider string

	tts *sherpa.OfflineTts

	mu     sync.Mutex
	rate   int // частота выхода, известна после первой генерации
	closed bool
}

// NewSynthesizer создаёт синтезатор из результата определения модели.
// Незнакомое семейство отклоняется с ErrUnsupportedKind.
func NewSynthesizer(res models.TtsDetectResult, opts TtsOptions) (*Synthesizer, error) {
	if !res.Ok {
		return nil, fmt.Errorf("detect result is not ok: %s", res.Error)
	}

	provider := resolveProvider(opts.Provider)

	modelConfig := sherpa.OfflineTtsModelConfig{
		NumThreads: opts.NumThreads,
		Provider:   provider,
	}

	switch res.SelectedKind {
	case models.TtsKindVits:
		modelConfig.Vits = sherpa.OfflineTtsVitsModelConfig{
			Model:       res.Paths.Model,
			Tokens:      res.Paths.Tokens,
			DataDir:     res.Paths.DataDir,
			NoiseScale:  opts.NoiseScale,
			NoiseScaleW: opts.NoiseScaleW,
			LengthScale: opts.LengthScale,
		}
	case models.TtsKindMatcha:
		modelConfig.Matcha = sherpa.OfflineTtsMatchaModelConfig{
			AcousticModel: res.Paths.AcousticModel,
			Vocoder:       res.Paths.Vocoder,
			Tokens:        res.Paths.Tokens,
			DataDir:       res.Paths.DataDir,
			LengthScale:   opts.LengthScale,
		}
	case models.TtsKindKokoro:
		modelConfig.Kokoro = sherpa.OfflineTtsKokoroModelConfig{
			Model:       res.Paths.Model,
			Voices:      res.Paths.Voices,
			Tokens:      res.Paths.Tokens,
			DataDir:     res.Paths.DataDir,
			LengthScale: opts.LengthScale,
		}
	case models.TtsKindKitten:
		modelConfig.Kitten = sherpa.OfflineTtsKittenModelConfig{
			Model:       res.Paths.Model,
			Voices:      res.Paths.Voices,
			Tokens:      res.Paths.Tokens,
			DataDir:     res.Paths.DataDir,
			LengthScale: opts.LengthScale,
		}
	case models.TtsKindZipvoice:
		modelConfig.Zipvoice = sherpa.OfflineTtsZipvoiceModelConfig{
			Tokens:            res.Paths.Tokens,
			TextModel:         res.Paths.Encoder,
			FlowMatchingModel: res.Paths.Decoder,
			Vocoder:           res.Paths.Vocoder,
			DataDir:           res.Paths.DataDir,
			FeatScale:         0.1,
			TShift:            0.5,
			TargetRms:         0.1,
			GuidanceScale:     1.0,
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, res.SelectedKind)
	}

	config := sherpa.OfflineTtsConfig{Model: modelConfig}

	tts := sherpa.NewOfflineTts(&config)
	if tts == nil && provider != "cpu" {
		log.Printf("Synthesizer: %s provider failed, falling back to cpu", provider)
		config.Model.Provider = "cpu"
		provider = "cpu"
		tts = sherpa.NewOfflineTts(&config)
	}
	if tts == nil {
		return nil, fmt.Errorf("failed to create synthesizer for %s", res.SelectedKind)
	}

	log.Printf("Synthesizer: %s ready (provider=%s)", res.SelectedKind, provider)

	return &Synthesizer{
		kind:     res.SelectedKind,
		provider: provider,
		tts:      tts,
	}, nil
}

// Kind возвращает семейство модели
func (s *Synthesizer) Kind() models.TtsKind { return s.kind }

// SampleRate возвращает частоту дискретизации выходного звука.
// Движок сообщает её с каждой порцией звука, а не при загрузке,
// поэтому до первой генерации возвращается 0.
func (s *Synthesizer) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Generate синтезирует фразу целиком. Блокирующий вызов.
func (s *Synthesizer) Generate(text string, speakerID int, speed float32) (Audio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.tts == nil {
		return Audio{}, fmt.Errorf("synthesizer is closed")
	}
	if speed <= 0 {
		speed = 1.0
	}

	audio := s.tts.Generate(text, speakerID, speed)
	if audio == nil || len(audio.Samples) == 0 {
		return Audio{}, fmt.Errorf("engine produced no audio")
	}
	s.rate = audio.SampleRate
	return Audio{Samples: audio.Samples, SampleRate: audio.SampleRate}, nil
}

// Close освобождает синтезатор. Повторный вызов безопасен.
func (s *Synthesizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.tts != nil {
		sherpa.DeleteOfflineTts(s.tts)
		s.tts = nil
	}
	s.closed = true
	log.Printf("Synthesizer: %s closed", s.kind)
}
