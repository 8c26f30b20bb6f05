package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeBytes(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")

	// Секунда синуса 440Hz
	rate := 16000
	src := make([]float32, rate)
	for i := range src {
		src[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}

	w, err := NewWAVWriter(path, rate, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(src); err != nil {
		t.Fatal(err)
	}
	if w.SamplesWritten() != int64(rate) {
		t.Errorf("expected %d samples written, got %d", rate, w.SamplesWritten())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got, gotRate, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if gotRate != rate {
		t.Errorf("expected rate %d, got %d", rate, gotRate)
	}
	if len(got) != len(src) {
		t.Fatalf("expected %d samples, got %d", len(src), len(got))
	}
	for i := 0; i < len(src); i += 1000 {
		if diff := math.Abs(float64(got[i] - src[i])); diff > 0.001 {
			t.Errorf("sample %d: diff %.5f too large", i, diff)
		}
	}
}

func TestWAVWriterClipping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	w, err := NewWAVWriter(path, 16000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]float32{2.0, -2.0, 0.0}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	got, _, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] < 0.99 || got[1] > -0.99 {
		t.Errorf("out-of-range samples must clip: %v", got)
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := writeBytes(path, []byte("definitely not a wav file")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadWAV(path); err == nil {
		t.Error("expected error for non-wav data")
	}
}

func TestResampleLinear(t *testing.T) {
	src := make([]float32, 48000)
	for i := range src {
		src[i] = float32(i) / 48000
	}

	down := ResampleLinear(src, 48000, 16000)
	if len(down) != 16000 {
		t.Errorf("expected 16000 samples, got %d", len(down))
	}
	// Линейный сигнал остаётся линейным после интерполяции
	mid := down[8000]
	if math.Abs(float64(mid-0.5)) > 0.01 {
		t.Errorf("midpoint expected ~0.5, got %f", mid)
	}

	same := ResampleLinear(src, 16000, 16000)
	if len(same) != len(src) {
		t.Error("same-rate resample must be a no-op")
	}
}
