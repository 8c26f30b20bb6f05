package ai

import (
	"fmt"
	"log"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// VoiceDetectorConfig конфигурация детектора голосовой активности
type VoiceDetectorConfig struct {
	ModelPath            string  // путь к ONNX модели Silero VAD
	SampleRate           int     // 8000 или 16000
	Threshold            float32 // порог вероятности речи (0.0-1.0)
	MinSilenceDurationMs int     // минимальная пауза, разрывающая сегмент
	MinSpeechDurationMs  int     // сегменты короче отбрасываются
	SpeechPadMs          int     // запас вокруг границ речи
}

// DefaultVoiceDetectorConfig конфигурация по умолчанию
func DefaultVoiceDetectorConfig(modelPath string) VoiceDetectorConfig {
	return VoiceDetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           16000,
		Threshold:            0.5,
		MinSilenceDurationMs: 300,
		MinSpeechDurationMs:  250,
		SpeechPadMs:          30,
	}
}

// SpeechSegment найденный участок речи
type SpeechSegment struct {
	StartMs int64
	EndMs   int64
	AvgProb float32
}

// VoiceDetector сегментирует длинные записи по голосовой активности
// перед офлайн-декодированием. Основан на Silero VAD.
type VoiceDetector struct {
	session *ort.DynamicAdvancedSession
	config  VoiceDetectorConfig

	// LSTM состояние и хвост предыдущего окна (контекст модели)
	state   []float32
	context []float32

	mu     sync.Mutex
	closed bool
}

// NewVoiceDetector создаёт детектор голосовой активности
func NewVoiceDetector(config VoiceDetectorConfig) (*VoiceDetector, error) {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("vad model not found: %s", config.ModelPath)
	}
	if config.SampleRate != 8000 && config.SampleRate != 16000 {
		return nil, fmt.Errorf("vad sample rate must be 8000 or 16000, got %d", config.SampleRate)
	}

	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		config.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create vad session: %w", err)
	}

	// Контекст модели: 64 сэмпла для 16kHz, 32 для 8kHz
	contextSize := 64
	if config.SampleRate == 8000 {
		contextSize = 32
	}

	log.Printf("VoiceDetector: ready (rate=%d, threshold=%.2f)", config.SampleRate, config.Threshold)

	return &VoiceDetector{
		session: session,
		config:  config,
		state:   make([]float32, 2*1*128), // [2, batch, 128] LSTM h+c
		context: make([]float32, contextSize),
	}, nil
}

// windowSize размер окна инференса: 512 сэмплов для 16kHz, 256 для 8kHz
func (v *VoiceDetector) windowSize() int {
	if v.config.SampleRate == 8000 {
		return 256
	}
	return 512
}

// Reset сбрасывает LSTM состояние и контекст
func (v *VoiceDetector) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.state)
	clear(v.context)
}

// Prob возвращает вероятность речи для одного окна аудио.
// Длина окна должна равняться windowSize.
func (v *VoiceDetector) Prob(window []float32) (float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, fmt.Errorf("voice detector is closed")
	}

	// Вход модели: контекст прошлого окна + текущее окно
	ctxSize := len(v.context)
	input := make([]float32, ctxSize+len(window))
	copy(input, v.context)
	copy(input[ctxSize:], window)

	if len(window) >= ctxSize {
		copy(v.context, window[len(window)-ctxSize:])
	} else {
		copy(v.context, v.context[len(window):])
		copy(v.context[ctxSize-len(window):], window)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), v.state)
	if err != nil {
		return 0, fmt.Errorf("failed to create state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(v.config.SampleRate)})
	if err != nil {
		return 0, fmt.Errorf("failed to create sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := v.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, fmt.Errorf("vad inference failed: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	probData := outputs[0].(*ort.Tensor[float32]).GetData()
	copy(v.state, outputs[1].(*ort.Tensor[float32]).GetData())

	if len(probData) == 0 {
		return 0, nil
	}
	return probData[0], nil
}

// DetectSegments находит участки речи в записи
func (v *VoiceDetector) DetectSegments(samples []float32) ([]SpeechSegment, error) {
	v.Reset()

	window := v.windowSize()
	windowMs := int64(window) * 1000 / int64(v.config.SampleRate)
	minSilenceWindows := int(int64(v.config.MinSilenceDurationMs) / windowMs)
	if minSilenceWindows < 1 {
		minSilenceWindows = 1
	}
	pad := int64(v.config.SpeechPadMs)

	var segments []SpeechSegment
	var current *SpeechSegment
	var probSum float32
	var probCount int
	silence := 0

	flush := func(endMs int64) {
		if current == nil {
			return
		}
		current.EndMs = endMs + pad
		if probCount > 0 {
			current.AvgProb = probSum / float32(probCount)
		}
		if current.EndMs-current.StartMs >= int64(v.config.MinSpeechDurationMs) {
			segments = append(segments, *current)
		}
		current = nil
	}

	for off := 0; off < len(samples); off += window {
		chunk := samples[off:min(off+window, len(samples))]
		if len(chunk) < window {
			padded := make([]float32, window)
			copy(padded, chunk)
			chunk = padded
		}

		prob, err := v.Prob(chunk)
		if err != nil {
			return nil, err
		}

		nowMs := int64(off) * 1000 / int64(v.config.SampleRate)
		if prob >= v.config.Threshold {
			silence = 0
			if current == nil {
				start := nowMs - pad
				if start < 0 {
					start = 0
				}
				current = &SpeechSegment{StartMs: start}
				probSum, probCount = 0, 0
			}
			probSum += prob
			probCount++
			continue
		}

		if current != nil {
			silence++
			if silence >= minSilenceWindows {
				flush(nowMs - int64(silence)*windowMs)
				silence = 0
			}
		}
	}
	flush(int64(len(samples)) * 1000 / int64(v.config.SampleRate))

	log.Printf("VoiceDetector: %d speech segments", len(segments))
	return segments, nil
}

// Close освобождает ресурсы. Повторный вызов безопасен.
func (v *VoiceDetector) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	if v.session != nil {
		v.session.Destroy()
		v.session = nil
	}
	v.closed = true
}

// ONNX Runtime инициализируется один раз на процесс
var (
	onnxInitialized bool
	onnxInitMu      sync.Mutex
)

func initONNXRuntime() error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if onnxInitialized {
		return nil
	}

	libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	if libPath == "" {
		// Рядом с исполняемым файлом или в Resources бандла
		searchPaths := []string{
			"./libonnxruntime.dylib",
			"./libonnxruntime.so",
			"../Resources/libonnxruntime.dylib",
			"/usr/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
		}
		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				libPath = path
				break
			}
		}
	}

	if libPath == "" {
		return fmt.Errorf("onnxruntime shared library not found, set ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}
	onnxInitialized = true
	log.Printf("VoiceDetector: onnx runtime initialized (%s)", libPath)
	return nil
}
