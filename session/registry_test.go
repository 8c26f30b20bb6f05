package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"pocketspeech/ai"
	"pocketspeech/models"
)

// fakeStream фейковый поток для тестов реестра
type fakeStream struct {
	mu       sync.Mutex
	accepted int
	closed   bool
	text     string
}

func (s *fakeStream) AcceptWaveform(sampleRate int, samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted += len(samples)
}
func (s *fakeStream) Drain() {}

func (s *fakeStream) Result() ai.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ai.Result{Text: s.text}
}

func (s *fakeStream) IsEndpoint() bool { return false }
func (s *fakeStream) Reset()           {}
func (s *fakeStream) InputFinished()   {}
func (s *fakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// fakeRecognizer фейковый движок
type fakeRecognizer struct {
	kind      models.Kind
	streaming bool

	mu      sync.Mutex
	closed  bool
	streams []*fakeStream
}

func (r *fakeRecognizer) Kind() models.Kind { return r.kind }
func (r *fakeRecognizer) IsStreaming() bool { return r.streaming }
func (r *fakeRecognizer) Transcribe(samples []float32, sampleRate int) (ai.Result, error) {
	return ai.Result{Text: fmt.Sprintf("%d samples", len(samples))}, nil
}
func (r *fakeRecognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
func (r *fakeRecognizer) CreateStream() (Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &fakeStream{}
	r.streams = append(r.streams, st)
	return st, nil
}

// fakeFactory запоминает созданные движки
type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeRecognizer
	fail    error
}

func (f *fakeFactory) make(res models.DetectResult, opts ai.RecognizerOptions) (Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	rec := &fakeRecognizer{kind: res.SelectedKind, streaming: opts.Streaming}
	f.created = append(f.created, rec)
	return rec, nil
}

func streamingResult() models.DetectResult {
	return models.DetectResult{Ok: true, SelectedKind: models.KindTransducer}
}

func newTestRegistry(t *testing.T) (*Registry, *fakeFactory) {
	t.Helper()
	f := &fakeFactory{}
	return NewRegistry(f.make), f
}

func TestCreateInstanceDuplicate(t *testing.T) {
	reg, _ := newTestRegistry(t)
	opts := ai.RecognizerOptions{Streaming: true}

	if err := reg.CreateInstance("a", streamingResult(), opts); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	err := reg.CreateInstance("a", streamingResult(), opts)
	if !errors.Is(err, ErrInstanceExists) {
		t.Errorf("expected ErrInstanceExists, got %v", err)
	}
}

func TestCreateInstanceFactoryFailureLeavesNoEntry(t *testing.T) {
	f := &fakeFactory{fail: errors.New("engine refused config")}
	reg := NewRegistry(f.make)

	if err := reg.CreateInstance("a", streamingResult(), ai.RecognizerOptions{}); err == nil {
		t.Fatal("expected factory error")
	}

	// После ошибки фабрики идентификатор остаётся свободным
	f.fail = nil
	if err := reg.CreateInstance("a", streamingResult(), ai.RecognizerOptions{}); err != nil {
		t.Errorf("id must remain free after failed create: %v", err)
	}
}

func TestCreateStreamUnknownInstance(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := reg.CreateStream("nope", "s1")
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestCreateStreamDuplicateDoesNotTouchExisting(t *testing.T) {
	reg, f := newTestRegistry(t)
	opts := ai.RecognizerOptions{Streaming: true}
	if err := reg.CreateInstance("a", streamingResult(), opts); err != nil {
		t.Fatal(err)
	}
	if err := reg.CreateStream("a", "s1"); err != nil {
		t.Fatal(err)
	}

	reg.WithStream("s1", func(st Stream) error {
		st.AcceptWaveform(16000, make([]float32, 100))
		return nil
	})

	err := reg.CreateStream("a", "s1")
	if !errors.Is(err, ErrStreamExists) {
		t.Fatalf("expected ErrStreamExists, got %v", err)
	}

	// Состояние существующего потока не тронуто
	existing := f.created[0].streams[0]
	if existing.accepted != 100 {
		t.Errorf("existing stream state mutated: accepted=%d", existing.accepted)
	}
	if existing.closed {
		t.Error("existing stream must not be closed by duplicate create")
	}
	if len(f.created[0].streams) != 1 {
		t.Errorf("duplicate create must not allocate engine streams, got %d", len(f.created[0].streams))
	}
}

func TestWithStreamUnknownID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	err := reg.WithStream("ghost", func(Stream) error { return nil })
	if !errors.Is(err, ErrStreamNotFound) {
		t.Errorf("expected ErrStreamNotFound, got %v", err)
	}
}

func TestReleaseStreamIdempotent(t *testing.T) {
	reg, f := newTestRegistry(t)
	opts := ai.RecognizerOptions{Streaming: true}
	reg.CreateInstance("a", streamingResult(), opts)
	reg.CreateStream("a", "s1")

	if err := reg.ReleaseStream("s1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !f.created[0].streams[0].closed {
		t.Error("engine stream must be closed on release")
	}
	if err := reg.ReleaseStream("s1"); err != nil {
		t.Errorf("second release must succeed trivially: %v", err)
	}
	if err := reg.ReleaseStream("never-existed"); err != nil {
		t.Errorf("release of unknown id must succeed trivially: %v", err)
	}
}

func TestUnloadCascadesStreams(t *testing.T) {
	reg, f := newTestRegistry(t)
	opts := ai.RecognizerOptions{Streaming: true}
	reg.CreateInstance("a", streamingResult(), opts)
	reg.CreateStream("a", "s1")
	reg.CreateStream("a", "s2")

	if err := reg.UnloadInstance("a"); err != nil {
		t.Fatalf("unload failed: %v", err)
	}

	// Все операции по старым потокам — not found
	for _, sid := range []string{"s1", "s2"} {
		err := reg.WithStream(sid, func(Stream) error { return nil })
		if !errors.Is(err, ErrStreamNotFound) {
			t.Errorf("%s: expected ErrStreamNotFound after unload, got %v", sid, err)
		}
	}

	rec := f.created[0]
	if !rec.closed {
		t.Error("engine must be closed on unload")
	}
	for i, st := range rec.streams {
		if !st.closed {
			t.Errorf("stream %d must be closed on unload", i)
		}
	}

	// Обратный индекс вычищен: старый идентификатор снова свободен
	reg.CreateInstance("b", streamingResult(), opts)
	if err := reg.CreateStream("b", "s1"); err != nil {
		t.Errorf("stream id must be reusable after owner unload: %v", err)
	}

	// Повторная выгрузка — успех без действий
	if err := reg.UnloadInstance("a"); err != nil {
		t.Errorf("second unload must succeed trivially: %v", err)
	}
}

func TestTranscribeOnInstance(t *testing.T) {
	reg, _ := newTestRegistry(t)
	reg.CreateInstance("off", models.DetectResult{Ok: true, SelectedKind: models.KindWhisper}, ai.RecognizerOptions{})

	res, err := reg.Transcribe("off", make([]float32, 320), 16000)
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if res.Text != "320 samples" {
		t.Errorf("unexpected result: %q", res.Text)
	}

	if _, err := reg.Transcribe("missing", nil, 16000); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestConfigSnapshot(t *testing.T) {
	reg, _ := newTestRegistry(t)
	res := streamingResult()
	opts := ai.RecognizerOptions{Streaming: true, NumThreads: 3}
	reg.CreateInstance("a", res, opts)

	gotRes, gotOpts, err := reg.ConfigSnapshot("a")
	if err != nil {
		t.Fatal(err)
	}
	if gotRes.SelectedKind != res.SelectedKind || gotOpts.NumThreads != 3 {
		t.Error("snapshot must preserve creation-time config")
	}
}

func TestRegistryCloseUnloadsAll(t *testing.T) {
	reg, f := newTestRegistry(t)
	opts := ai.RecognizerOptions{Streaming: true}
	reg.CreateInstance("a", streamingResult(), opts)
	reg.CreateInstance("b", streamingResult(), opts)
	reg.Close()

	for _, rec := range f.created {
		if !rec.closed {
			t.Error("all engines must be closed on registry close")
		}
	}
	if got := len(reg.List()); got != 0 {
		t.Errorf("expected empty registry after close, got %d", got)
	}
}

func TestConcurrentStreamOps(t *testing.T) {
	reg, _ := newTestRegistry(t)
	opts := ai.RecognizerOptions{Streaming: true}
	reg.CreateInstance("a", streamingResult(), opts)
	reg.CreateStream("a", "s1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				reg.WithStream("s1", func(st Stream) error {
					st.AcceptWaveform(16000, make([]float32, 10))
					st.Drain()
					return nil
				})
			}
		}()
	}
	// Выгрузка гонится с операциями: допустимы только чистые not found
	wg.Add(1)
	go func() {
		defer wg.Done()
		reg.UnloadInstance("a")
	}()
	wg.Wait()

	if err := reg.WithStream("s1", func(Stream) error { return nil }); !errors.Is(err, ErrStreamNotFound) {
		t.Errorf("expected ErrStreamNotFound after racing unload, got %v", err)
	}
}
