package main

import (
	"log"

	"pocketspeech/ai"
	"pocketspeech/audio"
	"pocketspeech/internal/api"
	"pocketspeech/internal/config"
	"pocketspeech/internal/service"
	"pocketspeech/models"
	"pocketspeech/session"
)

func main() {
	log.Println("PocketSpeech backend starting...")

	cfg := config.Load()
	log.Printf("Models directory: %s", cfg.ModelsDir)

	store, err := models.NewStore(cfg.ModelsDir)
	if err != nil {
		log.Fatalf("Failed to open model store: %v", err)
	}
	log.Printf("Model store: %d models installed", len(store.List()))

	registry := session.NewRegistry(session.SherpaFactory)
	defer registry.Close()

	streamingService := service.NewStreamingService(registry)
	transcriptionService := service.NewTranscriptionService(registry)

	// VAD опционален: без него длинные файлы декодируются целиком
	if cfg.VADModel != "" {
		vad, err := ai.NewVoiceDetector(ai.DefaultVoiceDetectorConfig(cfg.VADModel))
		if err != nil {
			log.Printf("Warning: failed to load VAD model: %v", err)
		} else {
			transcriptionService.SetVoiceDetector(vad)
			defer vad.Close()
			log.Println("VAD model loaded")
		}
	}

	// Захват микрофона опционален: на headless-хостах его может не быть
	capture, err := audio.NewCapture(16000)
	if err != nil {
		log.Printf("Warning: audio capture unavailable: %v", err)
		capture = nil
	} else {
		defer capture.Close()
	}

	server := api.NewServer(cfg, store, registry, streamingService, transcriptionService, capture)
	server.Start()
}
