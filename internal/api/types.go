package api

import (
	"pocketspeech/audio"
	"pocketspeech/internal/service"
	"pocketspeech/models"
	"pocketspeech/session"
)

// Message структура сообщения управляющего канала (WebSocket и gRPC)
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`

	// Выбор модели
	ModelID   string `json:"modelId,omitempty"`
	ModelDir  string `json:"modelDir,omitempty"`
	ModelKind string `json:"modelKind,omitempty"` // пусто или auto — автоопределение
	Quant     string `json:"quant,omitempty"`     // prefer-int8, prefer-full

	// Маршрутизация инстансов и потоков
	InstanceID string `json:"instanceId,omitempty"`
	StreamID   string `json:"streamId,omitempty"`

	// Параметры распознавателя
	Language      string  `json:"language,omitempty"`
	Streaming     bool    `json:"streaming,omitempty"`
	NumThreads    int     `json:"numThreads,omitempty"`
	Provider      string  `json:"provider,omitempty"` // auto, cpu, coreml, cuda
	HotwordsFile  string  `json:"hotwordsFile,omitempty"`
	HotwordsScore float32 `json:"hotwordsScore,omitempty"`

	// Аудио
	SampleRate int       `json:"sampleRate,omitempty"`
	Samples    []float32 `json:"samples,omitempty"`
	FilePath   string    `json:"filePath,omitempty"`

	// Синтез речи
	Text      string  `json:"text,omitempty"`
	SpeakerID int     `json:"speakerId,omitempty"`
	Speed     float32 `json:"speed,omitempty"`

	// Ответы
	Detect        *models.DetectResult       `json:"detect,omitempty"`
	TtsDetect     *models.TtsDetectResult    `json:"ttsDetect,omitempty"`
	Result        *service.StreamResult      `json:"result,omitempty"`
	Transcription *service.FileTranscription `json:"transcription,omitempty"`
	Chunk         *service.GenerationChunk   `json:"chunk,omitempty"`
	Instances     []session.InstanceInfo     `json:"instances,omitempty"`
	Models        []models.InstalledModel    `json:"models,omitempty"`
	Devices       []audio.Device             `json:"devices,omitempty"`

	Progress  float64 `json:"progress,omitempty"`
	Cancelled bool    `json:"cancelled,omitempty"`
	Error     string  `json:"error,omitempty"`
}
