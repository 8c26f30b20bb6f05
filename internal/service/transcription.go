package service

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"pocketspeech/ai"
	"pocketspeech/audio"
	"pocketspeech/session"
)

// Запись длиннее этого порога перед декодированием режется
// детектором голосовой активности
const vadSegmentThreshold = 30 * time.Second

// FileSegment распознанный участок файла
type FileSegment struct {
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
	Text    string `json:"text"`
}

// FileTranscription результат транскрипции файла
type FileTranscription struct {
	Text     string        `json:"text"`
	Segments []FileSegment `json:"segments,omitempty"`
	Duration time.Duration `json:"-"`
}

// TranscriptionService блокирующая транскрипция аудиофайлов
// через офлайн-инстанс реестра
type TranscriptionService struct {
	registry *session.Registry
	vad      *ai.VoiceDetector // nil: длинные файлы декодируются целиком
}

// NewTranscriptionService создаёт сервис поверх реестра
func NewTranscriptionService(registry *session.Registry) *TranscriptionService {
	return &TranscriptionService{registry: registry}
}

// SetVoiceDetector подключает сегментацию длинных записей
func (s *TranscriptionService) SetVoiceDetector(vad *ai.VoiceDetector) {
	s.vad = vad
}

// TranscribeFile декодирует WAV или MP3 файл через указанный инстанс.
// modelRate — частота дискретизации модели; файл ресемплируется.
func (s *TranscriptionService) TranscribeFile(instanceID, path string, modelRate int) (FileTranscription, error) {
	samples, rate, err := readAudioFile(path)
	if err != nil {
		return FileTranscription{}, err
	}
	if modelRate <= 0 {
		modelRate = 16000
	}
	if rate != modelRate {
		samples = audio.ResampleLinear(samples, rate, modelRate)
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(modelRate)
	log.Printf("Transcription: %s (%.1fs at %dHz)", filepath.Base(path), duration.Seconds(), modelRate)

	if s.vad != nil && duration > vadSegmentThreshold {
		return s.transcribeSegmented(instanceID, samples, modelRate, duration)
	}

	res, err := s.registry.Transcribe(instanceID, samples, modelRate)
	if err != nil {
		return FileTranscription{}, err
	}
	return FileTranscription{
		Text: res.Text,
		Segments: []FileSegment{{
			StartMs: 0,
			EndMs:   duration.Milliseconds(),
			Text:    res.Text,
		}},
		Duration: duration,
	}, nil
}

// transcribeSegmented режет запись по голосовой активности
// и декодирует участки речи по отдельности
func (s *TranscriptionService) transcribeSegmented(instanceID string, samples []float32, modelRate int, duration time.Duration) (FileTranscription, error) {
	speech, err := s.vad.DetectSegments(samples)
	if err != nil {
		return FileTranscription{}, fmt.Errorf("vad segmentation failed: %w", err)
	}
	if len(speech) == 0 {
		return FileTranscription{Duration: duration}, nil
	}

	var segments []FileSegment
	var parts []string
	for _, seg := range speech {
		start := int(seg.StartMs) * modelRate / 1000
		end := int(seg.EndMs) * modelRate / 1000
		if end > len(samples) {
			end = len(samples)
		}
		if start >= end {
			continue
		}

		res, err := s.registry.Transcribe(instanceID, samples[start:end], modelRate)
		if err != nil {
			return FileTranscription{}, err
		}
		text := strings.TrimSpace(res.Text)
		if text == "" {
			continue
		}
		segments = append(segments, FileSegment{
			StartMs: seg.StartMs,
			EndMs:   seg.EndMs,
			Text:    text,
		})
		parts = append(parts, text)
	}

	return FileTranscription{
		Text:     strings.Join(parts, " "),
		Segments: segments,
		Duration: duration,
	}, nil
}

// readAudioFile читает WAV или MP3 в float32 моно
func readAudioFile(path string) ([]float32, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return audio.ReadWAV(path)
	case ".mp3":
		return audio.ReadMP3(path)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format: %s", path)
	}
}
