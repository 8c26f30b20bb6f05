// Синтез речи в файл.
// Запуск: go run ./cmd/speak -dir <tts-model> -text "Привет, мир" -out speech.wav
// Расширение выходного файла выбирает формат: .wav или .mp3

package main

import (
	"flag"
	"log"
	"path/filepath"
	"strings"

	"pocketspeech/ai"
	"pocketspeech/audio"
	"pocketspeech/internal/service"
	"pocketspeech/models"
)

// sampleWriter общий интерфейс WAV и MP3 писателей
type sampleWriter interface {
	Write(samples []float32) error
	SamplesWritten() int64
	Close() error
}

func main() {
	dir := flag.String("dir", "", "TTS model directory")
	text := flag.String("text", "", "Text to synthesize")
	out := flag.String("out", "speech.wav", "Output file (.wav or .mp3)")
	speaker := flag.Int("speaker", 0, "Speaker id for multi-voice models")
	speed := flag.Float64("speed", 1.0, "Speech speed")
	threads := flag.Int("threads", 2, "Engine threads")
	flag.Parse()

	if *dir == "" || *text == "" {
		log.Fatal("usage: speak -dir <tts-model> -text <text> [-out speech.wav]")
	}

	res := models.ResolveTts(*dir, models.TtsKindAuto)
	if !res.Ok {
		log.Fatalf("Model detection failed: %s", res.Error)
	}
	log.Printf("Detected %s model in %s", res.SelectedKind, *dir)

	opts := ai.DefaultTtsOptions()
	opts.NumThreads = *threads
	synth, err := ai.NewSynthesizer(res, opts)
	if err != nil {
		log.Fatalf("Failed to create synthesizer: %v", err)
	}
	defer synth.Close()

	// Частоту выхода движок сообщает с первой порцией звука,
	// поэтому файл открывается на первом куске
	var writer sampleWriter
	var rate int

	done := make(chan error, 1)
	gen := service.NewGenerator(synth)
	gen.OnChunk = func(chunk service.GenerationChunk) {
		if writer == nil {
			rate = chunk.SampleRate
			w, err := newWriter(*out, rate)
			if err != nil {
				log.Fatalf("Failed to create output file: %v", err)
			}
			writer = w
		}
		if err := writer.Write(chunk.Samples); err != nil {
			log.Printf("Write error: %v", err)
		}
		log.Printf("Progress: %.0f%%", chunk.Progress*100)
	}
	gen.OnDone = func(cancelled bool, err error) {
		done <- err
	}

	if err := gen.Start(*text, *speaker, float32(*speed)); err != nil {
		log.Fatalf("Failed to start generation: %v", err)
	}
	if err := <-done; err != nil {
		log.Fatalf("Generation failed: %v", err)
	}
	if writer == nil {
		log.Fatal("Engine produced no audio")
	}

	samples := writer.SamplesWritten()
	if err := writer.Close(); err != nil {
		log.Fatalf("Failed to finalize output: %v", err)
	}
	log.Printf("Done: %s (%.1f sec at %dHz)", *out,
		float64(samples)/float64(rate), rate)
}

func newWriter(path string, sampleRate int) (sampleWriter, error) {
	if strings.ToLower(filepath.Ext(path)) == ".mp3" {
		return audio.NewMP3Writer(path, sampleRate, 1)
	}
	return audio.NewWAVWriter(path, sampleRate, 1)
}
