package ai

import (
	"fmt"
	"log"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"pocketspeech/models"
)

// Recognizer обёртка над распознавателем sherpa-onnx.
// В потоковом режиме внутри онлайн-распознаватель со стримами,
// иначе офлайн-распознаватель с декодированием целых высказываний.
type Recognizer struct {
	kind      models.Kind
	streaming bool
	provider  string

	online  *sherpa.OnlineRecognizer
	offline *sherpa.OfflineRecognizer

	mu     sync.Mutex
	closed bool
}

// NewRecognizer создаёт распознаватель из результата определения модели.
// Семейства, для которых сборка движка не несёт конфигурации,
// отклоняются с ErrUnsupportedKind.
func NewRecognizer(res models.DetectResult, opts RecognizerOptions) (*Recognizer, error) {
	if !res.Ok {
		return nil, fmt.Errorf("detect result is not ok: %s", res.Error)
	}
	kind := res.SelectedKind

	switch kind {
	case models.KindFunAsrNano, models.KindMedAsr:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}

	if opts.HotwordsFile != "" {
		if err := ValidateHotwordsFile(opts.HotwordsFile, kind); err != nil {
			return nil, err
		}
	}

	if opts.Streaming && !kind.IsStreaming() {
		return nil, fmt.Errorf("%w: %s decodes whole utterances only", ErrNotStreaming, kind)
	}

	provider := resolveProvider(opts.Provider)

	if opts.Streaming {
		return newOnlineRecognizer(res, opts, provider)
	}
	return newOfflineRecognizer(res, opts, provider)
}

// newOnlineRecognizer потоковый распознаватель (трансдьюсерные семейства)
func newOnlineRecognizer(res models.DetectResult, opts RecognizerOptions, provider string) (*Recognizer, error) {
	endpoint := 0
	if opts.EnableEndpoint {
		endpoint = 1
	}

	config := sherpa.OnlineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: opts.SampleRate,
			FeatureDim: opts.FeatureDim,
		},
		ModelConfig: sherpa.OnlineModelConfig{
			Transducer: sherpa.OnlineTransducerModelConfig{
				Encoder: res.Paths.Encoder,
				Decoder: res.Paths.Decoder,
				Joiner:  res.Paths.Joiner,
			},
			Tokens:     res.Paths.Tokens,
			NumThreads: opts.NumThreads,
			Provider:   provider,
		},
		DecodingMethod:          opts.DecodingMethod,
		MaxActivePaths:          opts.MaxActivePaths,
		EnableEndpoint:          endpoint,
		Rule1MinTrailingSilence: opts.Rule1MinTrailingSilence,
		Rule2MinTrailingSilence: opts.Rule2MinTrailingSilence,
		Rule3MinUtteranceLength: opts.Rule3MinUtteranceLength,
		HotwordsFile:            opts.HotwordsFile,
		HotwordsScore:           opts.HotwordsScore,
	}

	rec := sherpa.NewOnlineRecognizer(&config)
	if rec == nil && provider != "cpu" {
		// Провайдер платформы не завёлся — пробуем CPU
		log.Printf("Recognizer: %s provider failed, falling back to cpu", provider)
		config.ModelConfig.Provider = "cpu"
		provider = "cpu"
		rec = sherpa.NewOnlineRecognizer(&config)
	}
	if rec == nil {
		return nil, fmt.Errorf("failed to create streaming recognizer for %s", res.SelectedKind)
	}

	log.Printf("Recognizer: streaming %s ready (provider=%s, threads=%d)",
		res.SelectedKind, provider, opts.NumThreads)

	return &Recognizer{
		kind:      res.SelectedKind,
		streaming: true,
		provider:  provider,
		online:    rec,
	}, nil
}

// newOfflineRecognizer распознаватель целых высказываний
func newOfflineRecognizer(res models.DetectResult, opts RecognizerOptions, provider string) (*Recognizer, error) {
	modelConfig := sherpa.OfflineModelConfig{
		Tokens:     res.Paths.Tokens,
		NumThreads: opts.NumThreads,
		Provider:   provider,
	}

	switch res.SelectedKind {
	case models.KindTransducer:
		modelConfig.Transducer = sherpa.OfflineTransducerModelConfig{
			Encoder: res.Paths.Encoder,
			Decoder: res.Paths.Decoder,
			Joiner:  res.Paths.Joiner,
		}
	case models.KindNemoTransducer:
		modelConfig.Transducer = sherpa.OfflineTransducerModelConfig{
			Encoder: res.Paths.Encoder,
			Decoder: res.Paths.Decoder,
			Joiner:  res.Paths.Joiner,
		}
		modelConfig.ModelType = "nemo_transducer"
	case models.KindParaformer:
		modelConfig.Paraformer = sherpa.OfflineParaformerModelConfig{
			Model: res.Paths.Model,
		}
	case models.KindNemoCtc, models.KindWenetCtc, models.KindGenericCtc:
		// Однофайловые CTC семейства загружаются через общий CTC слот
		modelConfig.NemoCTC = sherpa.OfflineNemoEncDecCtcModelConfig{
			Model: res.Paths.Model,
		}
	case models.KindSenseVoice:
		modelConfig.SenseVoice = sherpa.OfflineSenseVoiceModelConfig{
			Model:    res.Paths.Model,
			Language: opts.Language,
		}
	case models.KindWhisper:
		modelConfig.Whisper = sherpa.OfflineWhisperModelConfig{
			Encoder:  res.Paths.Encoder,
			Decoder:  res.Paths.Decoder,
			Language: opts.Language,
			Task:     "transcribe",
		}
	case models.KindMoonshine:
		modelConfig.Moonshine = sherpa.OfflineMoonshineModelConfig{
			Preprocessor:    res.Paths.Preprocessor,
			Encoder:         res.Paths.Encoder,
			UncachedDecoder: res.Paths.UncachedDecoder,
			CachedDecoder:   res.Paths.CachedDecoder,
		}
	case models.KindDolphin:
		modelConfig.Dolphin = sherpa.OfflineDolphinModelConfig{
			Model: res.Paths.Model,
		}
	case models.KindFireRedAsr:
		modelConfig.FireRedAsr = sherpa.OfflineFireRedAsrModelConfig{
			Encoder: res.Paths.Encoder,
			Decoder: res.Paths.Decoder,
		}
	case models.KindCanary:
		modelConfig.Canary = sherpa.OfflineCanaryModelConfig{
			Encoder: res.Paths.Encoder,
			Decoder: res.Paths.Decoder,
			SrcLang: opts.Language,
			TgtLang: opts.Language,
		}
	case models.KindOmnilingual:
		modelConfig.Omnilingual = sherpa.OfflineOmnilingualAsrCtcModelConfig{
			Model: res.Paths.Model,
		}
	case models.KindTeleSpeechCtc:
		modelConfig.TeleSpeechCtc = res.Paths.Model
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, res.SelectedKind)
	}

	config := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: opts.SampleRate,
			FeatureDim: opts.FeatureDim,
		},
		ModelConfig:    modelConfig,
		DecodingMethod: opts.DecodingMethod,
		MaxActivePaths: opts.MaxActivePaths,
		HotwordsFile:   opts.HotwordsFile,
		HotwordsScore:  opts.HotwordsScore,
	}

	rec := sherpa.NewOfflineRecognizer(&config)
	if rec == nil && provider != "cpu" {
		log.Printf("Recognizer: %s provider failed, falling back to cpu", provider)
		config.ModelConfig.Provider = "cpu"
		provider = "cpu"
		rec = sherpa.NewOfflineRecognizer(&config)
	}
	if rec == nil {
		return nil, fmt.Errorf("failed to create offline recognizer for %s", res.SelectedKind)
	}

	log.Printf("Recognizer: offline %s ready (provider=%s, threads=%d)",
		res.SelectedKind, provider, opts.NumThreads)

	return &Recognizer{
		kind:     res.SelectedKind,
		provider: provider,
		offline:  rec,
	}, nil
}

// Kind возвращает семейство модели
func (r *Recognizer) Kind() models.Kind { return r.kind }

// IsStreaming сообщает, потоковый ли это распознаватель
func (r *Recognizer) IsStreaming() bool { return r.streaming }

// Provider возвращает фактический ONNX provider
func (r *Recognizer) Provider() string { return r.provider }

// CreateStream создаёт поток распознавания (только streaming режим)
func (r *Recognizer) CreateStream() (*Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("recognizer is closed")
	}
	if !r.streaming {
		return nil, ErrNotStreaming
	}
	st := sherpa.NewOnlineStream(r.online)
	if st == nil {
		return nil, fmt.Errorf("failed to create stream")
	}
	return &Stream{rec: r, stream: st}, nil
}

// Transcribe декодирует высказывание целиком (офлайн-распознаватель)
func (r *Recognizer) Transcribe(samples []float32, sampleRate int) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Result{}, fmt.Errorf("recognizer is closed")
	}
	if r.offline == nil {
		return Result{}, fmt.Errorf("streaming recognizer cannot transcribe whole utterances, use CreateStream")
	}

	stream := sherpa.NewOfflineStream(r.offline)
	if stream == nil {
		return Result{}, fmt.Errorf("failed to create decode stream")
	}
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(sampleRate, samples)
	r.offline.Decode(stream)

	res := stream.GetResult()
	if res == nil {
		return Result{}, fmt.Errorf("engine returned no result")
	}
	return Result{
		Text:       res.Text,
		Tokens:     res.Tokens,
		Timestamps: res.Timestamps,
		Lang:       res.Lang,
		Emotion:    res.Emotion,
		Event:      res.Event,
	}, nil
}

// Close освобождает распознаватель. Повторный вызов безопасен.
func (r *Recognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.online != nil {
		sherpa.DeleteOnlineRecognizer(r.online)
		r.online = nil
	}
	if r.offline != nil {
		sherpa.DeleteOfflineRecognizer(r.offline)
		r.offline = nil
	}
	r.closed = true
	log.Printf("Recognizer: %s closed", r.kind)
}

// Stream поток распознавания одного высказывания
type Stream struct {
	rec    *Recognizer
	stream *sherpa.OnlineStream
	closed bool
}

// AcceptWaveform подаёт очередную порцию аудио
func (s *Stream) AcceptWaveform(sampleRate int, samples []float32) {
	if s.closed {
		return
	}
	s.stream.AcceptWaveform(sampleRate, samples)
}

// Drain прогоняет декодер, пока движок сообщает о готовых кадрах.
// Вызывается после каждой порции аудио: снаружи опрашивать
// готовность декодера не нужно.
func (s *Stream) Drain() {
	if s.closed {
		return
	}
	for s.rec.online.IsReady(s.stream) {
		s.rec.online.Decode(s.stream)
	}
}

// Result текущий частичный или финальный результат
func (s *Stream) Result() Result {
	if s.closed {
		return Result{}
	}
	res := s.rec.online.GetResult(s.stream)
	if res == nil {
		return Result{}
	}
	return Result{Text: res.Text}
}

// IsEndpoint сообщает о конце высказывания
func (s *Stream) IsEndpoint() bool {
	if s.closed {
		return false
	}
	return s.rec.online.IsEndpoint(s.stream)
}

// Reset сбрасывает состояние потока для следующего высказывания
func (s *Stream) Reset() {
	if s.closed {
		return
	}
	s.rec.online.Reset(s.stream)
}

// InputFinished сигнализирует о конце входного аудио
func (s *Stream) InputFinished() {
	if s.closed {
		return
	}
	s.stream.InputFinished()
}

// Close освобождает поток. Повторный вызов безопасен.
func (s *Stream) Close() {
	if s.closed {
		return
	}
	sherpa.DeleteOnlineStream(s.stream)
	s.stream = nil
	s.closed = true
}
