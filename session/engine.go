// Package session управляет жизненным циклом инстансов движка:
// именованные распознаватели/синтезаторы и потоки распознавания,
// безопасные при конкурентном доступе.
package session

import (
	"pocketspeech/ai"
	"pocketspeech/models"
)

// Stream операции одного потока распознавания.
// Реализуется ai.Stream; в тестах подменяется фейком.
type Stream interface {
	AcceptWaveform(sampleRate int, samples []float32)
	Drain()
	Result() ai.Result
	IsEndpoint() bool
	Reset()
	InputFinished()
	Close()
}

// Recognizer то, что реестру нужно от распознавателя
type Recognizer interface {
	Kind() models.Kind
	IsStreaming() bool
	Transcribe(samples []float32, sampleRate int) (ai.Result, error)
	Close()
}

// StreamingRecognizer распознаватель, умеющий создавать потоки
type StreamingRecognizer interface {
	Recognizer
	CreateStream() (Stream, error)
}

// EngineFactory создаёт распознаватель из результата определения модели.
// Реестр не знает про sherpa напрямую: тесты подставляют фабрику фейков.
type EngineFactory func(res models.DetectResult, opts ai.RecognizerOptions) (Recognizer, error)

// SherpaFactory фабрика боевых распознавателей
func SherpaFactory(res models.DetectResult, opts ai.RecognizerOptions) (Recognizer, error) {
	rec, err := ai.NewRecognizer(res, opts)
	if err != nil {
		return nil, err
	}
	return sherpaRecognizer{rec}, nil
}

// sherpaRecognizer адаптер: сужает *ai.Stream до интерфейса Stream
type sherpaRecognizer struct {
	*ai.Recognizer
}

func (r sherpaRecognizer) CreateStream() (Stream, error) {
	return r.Recognizer.CreateStream()
}
