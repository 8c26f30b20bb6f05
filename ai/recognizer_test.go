package ai

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pocketspeech/models"
)

func okResult(kind models.Kind) models.DetectResult {
	return models.DetectResult{
		Ok:           true,
		SelectedKind: kind,
		Paths:        models.ResolvedPaths{Kind: kind},
	}
}

func TestNewRecognizerRejectsFailedDetect(t *testing.T) {
	res := models.DetectResult{Ok: false, Error: "no compatible model"}
	if _, err := NewRecognizer(res, DefaultRecognizerOptions()); err == nil {
		t.Error("expected error for failed detect result")
	}
}

func TestNewRecognizerUnsupportedKinds(t *testing.T) {
	for _, kind := range []models.Kind{models.KindFunAsrNano, models.KindMedAsr} {
		_, err := NewRecognizer(okResult(kind), DefaultRecognizerOptions())
		if !errors.Is(err, ErrUnsupportedKind) {
			t.Errorf("%s: expected ErrUnsupportedKind, got %v", kind, err)
		}
	}
}

// Семейства с конфигурацией в движке проходят границу поддержки:
// с пустыми путями создание падает уже в движке, а не на проверке семейства
func TestNewRecognizerCanaryOmnilingualPastBoundary(t *testing.T) {
	for _, kind := range []models.Kind{models.KindCanary, models.KindOmnilingual} {
		_, err := NewRecognizer(okResult(kind), DefaultRecognizerOptions())
		if err == nil {
			t.Fatalf("%s: expected engine error for empty paths", kind)
		}
		if errors.Is(err, ErrUnsupportedKind) {
			t.Errorf("%s: rejected as unsupported, want engine-level error, got %v", kind, err)
		}
	}
}

func TestNewRecognizerStreamingOnlyForTransducers(t *testing.T) {
	opts := DefaultRecognizerOptions()
	opts.Streaming = true

	_, err := NewRecognizer(okResult(models.KindWhisper), opts)
	if !errors.Is(err, ErrNotStreaming) {
		t.Errorf("expected ErrNotStreaming for whisper, got %v", err)
	}
}

func TestNewRecognizerHotwordsKindCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hw.txt")
	if err := os.WriteFile(path, []byte("pocket speech\n"), 0644); err != nil {
		t.Fatal(err)
	}

	opts := DefaultRecognizerOptions()
	opts.HotwordsFile = path

	_, err := NewRecognizer(okResult(models.KindSenseVoice), opts)
	if !errors.Is(err, ErrHotwordsUnsupported) {
		t.Errorf("expected ErrHotwordsUnsupported, got %v", err)
	}
}

func TestNewSynthesizerUnknownKind(t *testing.T) {
	res := models.TtsDetectResult{
		Ok:           true,
		SelectedKind: models.TtsKindUnknown,
		Paths:        models.TtsResolvedPaths{Kind: models.TtsKindUnknown},
	}
	_, err := NewSynthesizer(res, DefaultTtsOptions())
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("expected ErrUnsupportedKind, got %v", err)
	}
}

// kitten и zipvoice конфигурируются в движке, граница поддержки их
// не отклоняет: с пустыми путями падает уже создание движка
func TestNewSynthesizerKittenZipvoicePastBoundary(t *testing.T) {
	for _, kind := range []models.TtsKind{models.TtsKindKitten, models.TtsKindZipvoice} {
		res := models.TtsDetectResult{
			Ok:           true,
			SelectedKind: kind,
			Paths:        models.TtsResolvedPaths{Kind: kind},
		}
		_, err := NewSynthesizer(res, DefaultTtsOptions())
		if err == nil {
			t.Fatalf("%s: expected engine error for empty paths", kind)
		}
		if errors.Is(err, ErrUnsupportedKind) {
			t.Errorf("%s: rejected as unsupported, want engine-level error, got %v", kind, err)
		}
	}
}

// Частота дискретизации берётся из порций звука движка: до первой
// генерации она неизвестна и SampleRate возвращает 0
func TestSynthesizerSampleRateCachedFromGeneration(t *testing.T) {
	var s Synthesizer
	if got := s.SampleRate(); got != 0 {
		t.Errorf("expected 0 before first generation, got %d", got)
	}
	s.rate = 24000
	if got := s.SampleRate(); got != 24000 {
		t.Errorf("expected cached rate 24000, got %d", got)
	}
}
