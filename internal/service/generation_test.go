package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"pocketspeech/ai"
)

// fakeSynth фейковый синтезатор с управляемой задержкой
type fakeSynth struct {
	mu      sync.Mutex
	calls   int
	delay   time.Duration
	failAt  int // номер вызова, на котором вернуть ошибку (0 — никогда)
	release chan struct{}
}

func (f *fakeSynth) Generate(text string, speakerID int, speed float32) (ai.Audio, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failAt > 0 && n == f.failAt {
		return ai.Audio{}, errors.New("synthesis failed")
	}
	return ai.Audio{Samples: make([]float32, 100), SampleRate: 22050}, nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// collect собирает события генератора для проверок
type collect struct {
	mu     sync.Mutex
	chunks []GenerationChunk
	done   []bool // значения cancelled терминальных событий
	errs   []error
}

func (c *collect) hook(g *Generator, doneCh chan struct{}) {
	g.OnChunk = func(chunk GenerationChunk) {
		c.mu.Lock()
		c.chunks = append(c.chunks, chunk)
		c.mu.Unlock()
	}
	g.OnDone = func(cancelled bool, err error) {
		c.mu.Lock()
		c.done = append(c.done, cancelled)
		c.errs = append(c.errs, err)
		c.mu.Unlock()
		doneCh <- struct{}{}
	}
}

func TestGeneratorEmitsChunksAndProgress(t *testing.T) {
	synth := &fakeSynth{}
	g := NewGenerator(synth)
	done := make(chan struct{}, 1)
	var c collect
	c.hook(g, done)

	if err := g.Start("Первое предложение. Второе предложение. Третье!", 0, 1.0); err != nil {
		t.Fatal(err)
	}
	<-done

	if len(c.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(c.chunks))
	}
	if c.chunks[2].Progress != 1.0 {
		t.Errorf("final progress must be 1.0, got %f", c.chunks[2].Progress)
	}
	if c.chunks[0].Progress >= c.chunks[1].Progress {
		t.Error("progress must be monotonic")
	}
	if len(c.done) != 1 || c.done[0] {
		t.Errorf("expected single terminal event with cancelled=false, got %v", c.done)
	}
	if g.IsRunning() {
		t.Error("running flag must be cleared after completion")
	}
}

func TestGeneratorSingleFlight(t *testing.T) {
	synth := &fakeSynth{release: make(chan struct{})}
	g := NewGenerator(synth)
	done := make(chan struct{}, 1)
	var c collect
	c.hook(g, done)

	if err := g.Start("Длинный текст. Ещё текст.", 0, 1.0); err != nil {
		t.Fatal(err)
	}

	// Вторая генерация при активной первой отклоняется сразу
	if err := g.Start("другой текст", 0, 1.0); !errors.Is(err, ErrGenerationActive) {
		t.Errorf("expected ErrGenerationActive, got %v", err)
	}

	close(synth.release)
	<-done

	// После завершения новая генерация стартует
	if err := g.Start("снова", 0, 1.0); err != nil {
		t.Errorf("restart after completion must succeed: %v", err)
	}
	<-done
}

func TestGeneratorCancel(t *testing.T) {
	synth := &fakeSynth{delay: 20 * time.Millisecond}
	g := NewGenerator(synth)
	done := make(chan struct{}, 1)
	var c collect
	c.hook(g, done)

	text := "Один. Два. Три. Четыре. Пять. Шесть. Семь. Восемь."
	if err := g.Start(text, 0, 1.0); err != nil {
		t.Fatal(err)
	}

	time.Sleep(30 * time.Millisecond)
	g.Cancel()
	<-done

	if len(c.done) != 1 || !c.done[0] {
		t.Fatalf("expected single terminal event with cancelled=true, got %v", c.done)
	}
	// После точки отмены порции не приходят
	chunksAtDone := len(c.chunks)
	time.Sleep(50 * time.Millisecond)
	if len(c.chunks) != chunksAtDone {
		t.Error("no chunks may arrive after the terminal event")
	}
	if len(c.chunks) >= 8 {
		t.Errorf("cancel must stop generation early, got %d chunks", len(c.chunks))
	}

	// Флаг снят: новая генерация возможна
	if err := g.Start("заново", 0, 1.0); err != nil {
		t.Errorf("restart after cancel must succeed: %v", err)
	}
	<-done
	if c.done[1] {
		t.Error("new run must not inherit the cancel flag")
	}
}

func TestGeneratorEngineError(t *testing.T) {
	synth := &fakeSynth{failAt: 2}
	g := NewGenerator(synth)
	done := make(chan struct{}, 1)
	var c collect
	c.hook(g, done)

	if err := g.Start("Раз. Два. Три.", 0, 1.0); err != nil {
		t.Fatal(err)
	}
	<-done

	if len(c.errs) != 1 || c.errs[0] == nil {
		t.Errorf("terminal event must carry the engine error, got %v", c.errs)
	}
	if g.IsRunning() {
		t.Error("running flag must be cleared after engine error")
	}
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"Одно предложение без точки", 1},
		{"Раз. Два! Три?", 3},
		{"Строка раз\nстрока два", 2},
		{"Привет… Пока.", 2},
	}
	for _, c := range cases {
		got := SplitSentences(c.text)
		if len(got) != c.want {
			t.Errorf("%q: expected %d sentences, got %d (%v)", c.text, c.want, len(got), got)
		}
	}
}
