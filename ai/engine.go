// Package ai оборачивает движок инференса sherpa-onnx: создание
// распознавателей и синтезатора из результата определения модели,
// потоковые стримы и определение голосовой активности.
package ai

import "errors"

// Ошибки границы движка
var (
	// ErrUnsupportedKind семейство определено резолвером, но сборка
	// движка не несёт для него конфигурации
	ErrUnsupportedKind = errors.New("model kind not supported by this engine build")
	// ErrHotwordsUnsupported hotwords запрошены для семейства без их поддержки
	ErrHotwordsUnsupported = errors.New("hotwords are not supported for this model kind")
	// ErrNotStreaming потоковая операция над офлайн-распознавателем
	ErrNotStreaming = errors.New("recognizer does not support streaming")
)

// Result результат распознавания высказывания
type Result struct {
	Text       string    `json:"text"`
	Tokens     []string  `json:"tokens,omitempty"`
	Timestamps []float32 `json:"timestamps,omitempty"`
	Lang       string    `json:"lang,omitempty"`
	Emotion    string    `json:"emotion,omitempty"`
	Event      string    `json:"event,omitempty"`
}

// RecognizerOptions параметры создания распознавателя.
// Нулевые значения означают "не задано": дефолты применяет
// DefaultRecognizerOptions либо сам конструктор.
type RecognizerOptions struct {
	NumThreads     int
	Provider       string // cpu, cuda, coreml, auto
	DecodingMethod string // greedy_search, modified_beam_search
	MaxActivePaths int

	SampleRate int
	FeatureDim int

	// Потоковый режим: только трансдьюсерные семейства
	Streaming bool

	// Правила определения конца высказывания (только streaming)
	EnableEndpoint          bool
	Rule1MinTrailingSilence float32
	Rule2MinTrailingSilence float32
	Rule3MinUtteranceLength float32

	// Подсказки распознавания; применяются на уровне инстанса
	HotwordsFile  string
	HotwordsScore float32

	// Язык (whisper, sense-voice); пустая строка — автоопределение
	Language string
}

// DefaultRecognizerOptions параметры по умолчанию
func DefaultRecognizerOptions() RecognizerOptions {
	return RecognizerOptions{
		NumThreads:              2,
		Provider:                "auto",
		DecodingMethod:          "greedy_search",
		MaxActivePaths:          4,
		SampleRate:              16000,
		FeatureDim:              80,
		EnableEndpoint:          true,
		Rule1MinTrailingSilence: 2.4,
		Rule2MinTrailingSilence: 1.2,
		Rule3MinUtteranceLength: 20.0,
		HotwordsScore:           1.5,
	}
}

// TtsOptions параметры создания синтезатора
type TtsOptions struct {
	NumThreads int
	Provider   string

	// Параметры VITS-подобных моделей
	NoiseScale  float32
	NoiseScaleW float32
	LengthScale float32
}

// DefaultTtsOptions параметры по умолчанию
func DefaultTtsOptions() TtsOptions {
	return TtsOptions{
		NumThreads:  2,
		Provider:    "auto",
		NoiseScale:  0.667,
		NoiseScaleW: 0.8,
		LengthScale: 1.0,
	}
}
