// Потоковое распознавание с микрофона.
// Запуск: go run ./cmd/mic -dir <streaming-model>
// Остановка: Ctrl+C

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pocketspeech/ai"
	"pocketspeech/audio"
	"pocketspeech/internal/service"
	"pocketspeech/models"
	"pocketspeech/session"
)

func main() {
	dir := flag.String("dir", "", "Streaming model directory (transducer)")
	device := flag.String("device", "", "Capture device name substring (default device if empty)")
	rate := flag.Int("rate", 16000, "Model sample rate")
	flag.Parse()

	if *dir == "" {
		log.Fatal("usage: mic -dir <streaming-model-directory>")
	}

	res := models.Resolve(*dir, models.QuantDefault, models.KindAuto)
	if !res.Ok {
		log.Fatalf("Model detection failed: %s", res.Error)
	}
	if !res.SelectedKind.IsStreaming() {
		log.Fatalf("Model %s does not support streaming; use an offline tool instead", res.SelectedKind)
	}
	log.Printf("Detected %s model", res.SelectedKind)

	opts := ai.DefaultRecognizerOptions()
	opts.Streaming = true
	opts.SampleRate = *rate

	registry := session.NewRegistry(session.SherpaFactory)
	defer registry.Close()

	if err := registry.CreateInstance("mic", res, opts); err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	if err := registry.CreateStream("mic", "mic-stream"); err != nil {
		log.Fatalf("Failed to create stream: %v", err)
	}
	streaming := service.NewStreamingService(registry)

	capture, err := audio.NewCapture(*rate)
	if err != nil {
		log.Fatalf("Failed to init capture: %v", err)
	}
	defer capture.Close()

	if *device != "" {
		if err := capture.SetDeviceByName(*device); err != nil {
			log.Fatalf("Failed to select device: %v", err)
		}
	}
	if err := capture.Start(); err != nil {
		log.Fatalf("Failed to start capture: %v", err)
	}
	defer capture.Stop()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Говорите, результат появится по мере распознавания...")

	var lastText string
	for {
		select {
		case <-stopChan:
			final, err := streaming.FinishStream("mic-stream")
			if err == nil && final.Text != "" {
				fmt.Printf("\n>> %s\n", final.Text)
			}
			log.Println("Остановка")
			return

		case samples := <-capture.Data():
			result, err := streaming.PushAudio("mic-stream", *rate, samples)
			if err != nil {
				log.Fatalf("Decode error: %v", err)
			}
			if result.Text != "" && result.Text != lastText {
				fmt.Printf("\r%s", result.Text)
				lastText = result.Text
			}
			if result.IsEndpoint {
				if lastText != "" {
					fmt.Printf("\n>> %s\n", lastText)
					lastText = ""
				}
				streaming.ResetStream("mic-stream")
			}
		}
	}
}
