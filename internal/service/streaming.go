// Package service содержит управляющую логику поверх реестра сессий:
// потоковый цикл декодирования, фоновую генерацию речи и
// транскрипцию файлов.
package service

import (
	"pocketspeech/session"
)

// StreamResult результат после очередной порции аудио
type StreamResult struct {
	Text       string    `json:"text"`
	Tokens     []string  `json:"tokens,omitempty"`
	Timestamps []float32 `json:"timestamps,omitempty"`
	IsEndpoint bool      `json:"isEndpoint"`
}

// StreamingService потоковое распознавание через реестр сессий
type StreamingService struct {
	registry *session.Registry
}

// NewStreamingService создаёт сервис поверх реестра
func NewStreamingService(registry *session.Registry) *StreamingService {
	return &StreamingService{registry: registry}
}

// PushAudio подаёт порцию аудио и выгребает декодер досуха:
// пока движок сообщает о готовых кадрах, декодируем. Снаружи
// опрашивать готовность между порциями не нужно.
func (s *StreamingService) PushAudio(streamID string, sampleRate int, samples []float32) (StreamResult, error) {
	var result StreamResult
	err := s.registry.WithStream(streamID, func(st session.Stream) error {
		st.AcceptWaveform(sampleRate, samples)
		st.Drain()

		r := st.Result()
		result = StreamResult{
			Text:       r.Text,
			Tokens:     r.Tokens,
			Timestamps: r.Timestamps,
			IsEndpoint: st.IsEndpoint(),
		}
		return nil
	})
	return result, err
}

// ResetStream сбрасывает поток для следующего высказывания
func (s *StreamingService) ResetStream(streamID string) error {
	return s.registry.WithStream(streamID, func(st session.Stream) error {
		st.Reset()
		return nil
	})
}

// FinishStream сигнализирует конец входа, дожимает декодер
// и возвращает финальный результат
func (s *StreamingService) FinishStream(streamID string) (StreamResult, error) {
	var result StreamResult
	err := s.registry.WithStream(streamID, func(st session.Stream) error {
		st.InputFinished()
		st.Drain()

		r := st.Result()
		result = StreamResult{
			Text:       r.Text,
			Tokens:     r.Tokens,
			Timestamps: r.Timestamps,
			IsEndpoint: true,
		}
		return nil
	})
	return result, err
}
