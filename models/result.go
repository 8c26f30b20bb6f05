package models

// DetectedModel правдоподобное семейство, найденное в директории.
// Один проход может насчитать несколько кандидатов; выбирается ровно один.
type DetectedModel struct {
	Kind      Kind   `json:"kind"`
	Directory string `json:"directory"`
}

// ResolvedPaths конкретные файлы модели, помеченные семейством.
// Заполнены только поля, осмысленные для Kind; остальные пустые.
type ResolvedPaths struct {
	Kind Kind `json:"kind"`

	// Трансдьюсеры, whisper, fire-red-asr, canary
	Encoder string `json:"encoder,omitempty"`
	Decoder string `json:"decoder,omitempty"`
	Joiner  string `json:"joiner,omitempty"`

	// Однофайловые семейства (paraformer, CTC, dolphin и т.д.)
	Model string `json:"model,omitempty"`

	// Moonshine
	Preprocessor    string `json:"preprocessor,omitempty"`
	UncachedDecoder string `json:"uncachedDecoder,omitempty"`
	CachedDecoder   string `json:"cachedDecoder,omitempty"`

	// FunASR-Nano
	EncoderAdaptor string `json:"encoderAdaptor,omitempty"`
	LLM            string `json:"llm,omitempty"`
	Embedding      string `json:"embedding,omitempty"`
	VocabJSON      string `json:"vocabJson,omitempty"`

	// Словарь токенов; обязателен для всех семейств кроме
	// whisper и funasr-nano (у них собственный токенизатор)
	Tokens string `json:"tokens,omitempty"`
}

// DetectResult результат определения распознающей модели.
// Инвариант: Ok=true тогда и только тогда, когда SelectedKind != unknown
// и Paths полностью заполнен для выбранного семейства.
type DetectResult struct {
	Ok             bool            `json:"ok"`
	Err            error           `json:"-"`
	Error          string          `json:"error,omitempty"`
	SelectedKind   Kind            `json:"selectedKind"`
	DetectedModels []DetectedModel `json:"detectedModels,omitempty"`
	Paths          ResolvedPaths   `json:"paths"`
}

// failResult строит отрицательный результат с сохранением кандидатов
func failResult(err error, detected []DetectedModel) DetectResult {
	return DetectResult{
		Ok:             false,
		Err:            err,
		Error:          err.Error(),
		SelectedKind:   KindUnknown,
		DetectedModels: detected,
	}
}

// TtsResolvedPaths файлы синтезирующей модели
type TtsResolvedPaths struct {
	Kind TtsKind `json:"kind"`

	// VITS, Kokoro, Kitten — одна акустическая модель
	Model string `json:"model,omitempty"`

	// Matcha
	AcousticModel string `json:"acousticModel,omitempty"`

	// Zipvoice
	Encoder string `json:"encoder,omitempty"`
	Decoder string `json:"decoder,omitempty"`

	// Вокодер (matcha, zipvoice)
	Vocoder string `json:"vocoder,omitempty"`

	// Kokoro/Kitten — банк голосов
	Voices string `json:"voices,omitempty"`

	Tokens  string `json:"tokens,omitempty"`
	DataDir string `json:"dataDir,omitempty"` // директория языковых ресурсов (espeak-ng-data)
}

// TtsDetectResult результат определения синтезирующей модели
type TtsDetectResult struct {
	Ok             bool             `json:"ok"`
	Err            error            `json:"-"`
	Error          string           `json:"error,omitempty"`
	SelectedKind   TtsKind          `json:"selectedKind"`
	DetectedModels []DetectedModel  `json:"detectedModels,omitempty"`
	Paths          TtsResolvedPaths `json:"paths"`
}

func failTtsResult(err error, detected []DetectedModel) TtsDetectResult {
	return TtsDetectResult{
		Ok:             false,
		Err:            err,
		Error:          err.Error(),
		SelectedKind:   TtsKindUnknown,
		DetectedModels: detected,
	}
}
