package models

import (
	"fmt"
	"path/filepath"
	"strings"

	"pocketspeech/probe"
)

// Канонические имена файлов, по которым различаются семейства
const (
	tokensFile    = "tokens.txt"
	vocabFile     = "vocab.json"
	funasrLLMDir  = "Qwen3-0.6B" // обычное имя поддиректории токенизатора FunASR-Nano
	funasrLLMHint = "qwen"
)

// Scan кэширует результат осмотра директории модели.
// Все предикаты правил работают поверх Scan, повторно диск не трогают.
type Scan struct {
	Dir   string
	Quant QuantPreference

	files []probe.FileEntry
	dirs  []string
}

// NewScan осматривает директорию. Директория должна существовать.
func NewScan(dir string, quant QuantPreference) *Scan {
	return &Scan{
		Dir:   dir,
		Quant: quant,
		files: probe.ListFiles(dir),
		dirs:  probe.ListDirs(dir),
	}
}

// find выбирает вариант файла base.onnx / base.int8.onnx
// согласно предпочтению квантизации
func (s *Scan) find(base string) string {
	for _, name := range s.Quant.variantOrder(base, ".onnx") {
		if p := s.file(name); p != "" {
			return p
		}
	}
	return ""
}

// file ищет файл с точным именем среди осмотренных
func (s *Scan) file(name string) string {
	for _, f := range s.files {
		if strings.EqualFold(f.Name, name) {
			return f.Path
		}
	}
	return ""
}

// hasHint проверяет подстроки-подсказки в полном пути директории
func (s *Scan) hasHint(hints ...string) bool {
	for _, h := range hints {
		if probe.ContainsFold(s.Dir, h) {
			return true
		}
	}
	return false
}

// tokens возвращает путь к словарю токенов, если он есть
func (s *Scan) tokens() string {
	return s.file(tokensFile)
}

// funasrVocab ищет vocab.json для FunASR-Nano: сначала в самой директории,
// затем одним уровнем ниже — в поддиректории с именем семейства LLM,
// в последнюю очередь в конвенциональной поддиректории.
func (s *Scan) funasrVocab() string {
	if p := s.file(vocabFile); p != "" {
		return p
	}
	for _, d := range s.dirs {
		if !probe.ContainsFold(d, funasrLLMHint) {
			continue
		}
		if p := probe.FindFile(filepath.Join(s.Dir, d), vocabFile); p != "" {
			return p
		}
	}
	return probe.FindFile(filepath.Join(s.Dir, funasrLLMDir), vocabFile)
}

// Rule одно правило автоопределения: предикат над результатами осмотра
// и семейство, которое он выбирает. Правила применяются строго по порядку
// AutoLadder; порядок — осознанный tie-break и менять его нельзя.
type Rule struct {
	Kind  Kind
	Match func(s *Scan) (ResolvedPaths, bool)
}

// AutoLadder фиксированная лестница правил автоопределения.
// Первое сработавшее правило задаёт выбранное семейство.
var AutoLadder = []Rule{
	{KindNemoTransducer, func(s *Scan) (ResolvedPaths, bool) {
		if !s.hasHint("nemo", "parakeet") {
			return ResolvedPaths{}, false
		}
		p, err := resolveTransducer(s, KindNemoTransducer)
		return p, err == nil
	}},
	{KindTransducer, func(s *Scan) (ResolvedPaths, bool) {
		p, err := resolveTransducer(s, KindTransducer)
		return p, err == nil
	}},
	{KindNemoCtc, hintedSingleModel(KindNemoCtc, "nemo", "parakeet")},
	{KindWenetCtc, hintedSingleModel(KindWenetCtc, "wenet")},
	{KindSenseVoice, hintedSingleModel(KindSenseVoice, "sense")},
	{KindFunAsrNano, func(s *Scan) (ResolvedPaths, bool) {
		if !s.hasHint("funasr") {
			return ResolvedPaths{}, false
		}
		p, err := resolveFunAsrNano(s)
		return p, err == nil
	}},
	{KindParaformer, hintedSingleModel(KindParaformer, "paraformer")},
	{KindWhisper, func(s *Scan) (ResolvedPaths, bool) {
		// Шёпот отличается от трансдьюсера отсутствием joiner.
		// Подсказки специализированных encoder/decoder семейств
		// уступают своим правилам ниже по лестнице.
		if s.hasHint("fire-red", "firered", "canary", "moonshine") {
			return ResolvedPaths{}, false
		}
		p, err := resolveWhisper(s)
		return p, err == nil
	}},
	{KindMoonshine, func(s *Scan) (ResolvedPaths, bool) {
		if !s.hasHint("moonshine") {
			return ResolvedPaths{}, false
		}
		p, err := resolveMoonshine(s)
		return p, err == nil
	}},
	{KindDolphin, hintedSingleModel(KindDolphin, "dolphin")},
	{KindFireRedAsr, func(s *Scan) (ResolvedPaths, bool) {
		if !s.hasHint("fire-red", "firered") {
			return ResolvedPaths{}, false
		}
		p, err := resolveEncoderDecoder(s, KindFireRedAsr)
		return p, err == nil
	}},
	{KindCanary, func(s *Scan) (ResolvedPaths, bool) {
		if !s.hasHint("canary") {
			return ResolvedPaths{}, false
		}
		p, err := resolveEncoderDecoder(s, KindCanary)
		return p, err == nil
	}},
	{KindOmnilingual, hintedSingleModel(KindOmnilingual, "omnilingual")},
	{KindMedAsr, hintedSingleModel(KindMedAsr, "medasr")},
	{KindTeleSpeechCtc, hintedSingleModel(KindTeleSpeechCtc, "telespeech")},
	{KindGenericCtc, func(s *Scan) (ResolvedPaths, bool) {
		p, err := resolveSingleModel(s, KindGenericCtc)
		return p, err == nil
	}},
}

// hintedSingleModel правило "один файл модели + подсказка в имени"
func hintedSingleModel(kind Kind, hints ...string) func(*Scan) (ResolvedPaths, bool) {
	return func(s *Scan) (ResolvedPaths, bool) {
		if !s.hasHint(hints...) {
			return ResolvedPaths{}, false
		}
		p, err := resolveSingleModel(s, kind)
		return p, err == nil
	}
}

// Resolve определяет распознающую модель в директории.
// quant управляет выбором int8/full вариантов; explicit (не auto)
// пропускает лестницу, но валидация файлов выполняется всё равно.
// Ошибки всегда возвращаются внутри результата, никогда паникой.
func Resolve(dir string, quant QuantPreference, explicit Kind) DetectResult {
	if !probe.IsDir(dir) {
		return failResult(fmt.Errorf("model directory not found or not a directory: %s", dir), nil)
	}

	s := NewScan(dir, quant)

	if explicit != KindAuto && explicit != "" {
		return resolveExplicit(s, explicit)
	}

	// Собираем все правдоподобные семейства, выбираем первое по лестнице
	var detected []DetectedModel
	var selected ResolvedPaths
	for _, rule := range AutoLadder {
		paths, ok := rule.Match(s)
		if !ok {
			continue
		}
		detected = append(detected, DetectedModel{Kind: rule.Kind, Directory: dir})
		if selected.Kind == "" {
			selected = paths
		}
	}

	if selected.Kind == "" {
		return failResult(fmt.Errorf("no compatible model detected in %s", dir), nil)
	}
	return finishResolve(s, selected, detected)
}

// resolveExplicit валидирует явно запрошенное семейство.
// Несоответствие файлов — ошибка с именем семейства, без отката на другое.
func resolveExplicit(s *Scan, kind Kind) DetectResult {
	paths, err := resolveKind(s, kind)
	if err != nil {
		return failResult(fmt.Errorf("model kind %s: %w", kind, err), nil)
	}
	detected := []DetectedModel{{Kind: kind, Directory: s.Dir}}
	return finishResolve(s, paths, detected)
}

// finishResolve применяет общее требование словаря токенов
func finishResolve(s *Scan, paths ResolvedPaths, detected []DetectedModel) DetectResult {
	if paths.Kind != KindWhisper && paths.Kind != KindFunAsrNano {
		paths.Tokens = s.tokens()
		if paths.Tokens == "" {
			return failResult(fmt.Errorf("tokens file not found: %s", filepath.Join(s.Dir, tokensFile)), detected)
		}
	}
	return DetectResult{
		Ok:             true,
		SelectedKind:   paths.Kind,
		DetectedModels: detected,
		Paths:          paths,
	}
}

// resolveKind валидатор семейства для явного выбора
func resolveKind(s *Scan, kind Kind) (ResolvedPaths, error) {
	switch kind {
	case KindTransducer, KindNemoTransducer:
		return resolveTransducer(s, kind)
	case KindParaformer, KindNemoCtc, KindWenetCtc, KindSenseVoice,
		KindGenericCtc, KindDolphin, KindOmnilingual, KindMedAsr, KindTeleSpeechCtc:
		return resolveSingleModel(s, kind)
	case KindWhisper:
		return resolveWhisper(s)
	case KindFunAsrNano:
		return resolveFunAsrNano(s)
	case KindMoonshine:
		return resolveMoonshine(s)
	case KindFireRedAsr, KindCanary:
		return resolveEncoderDecoder(s, kind)
	default:
		return ResolvedPaths{}, fmt.Errorf("unknown model kind: %q", kind)
	}
}

// resolveTransducer требует тройку encoder/decoder/joiner
func resolveTransducer(s *Scan, kind Kind) (ResolvedPaths, error) {
	encoder := s.find("encoder")
	decoder := s.find("decoder")
	joiner := s.find("joiner")
	if encoder == "" {
		return ResolvedPaths{}, fmt.Errorf("missing encoder.onnx")
	}
	if decoder == "" {
		return ResolvedPaths{}, fmt.Errorf("missing decoder.onnx")
	}
	if joiner == "" {
		return ResolvedPaths{}, fmt.Errorf("missing joiner.onnx")
	}
	return ResolvedPaths{Kind: kind, Encoder: encoder, Decoder: decoder, Joiner: joiner}, nil
}

// resolveSingleModel требует единственный model.onnx (или int8 вариант)
func resolveSingleModel(s *Scan, kind Kind) (ResolvedPaths, error) {
	model := s.find("model")
	if model == "" {
		return ResolvedPaths{}, fmt.Errorf("missing model.onnx")
	}
	return ResolvedPaths{Kind: kind, Model: model}, nil
}

// resolveWhisper требует encoder+decoder и отсутствие joiner
func resolveWhisper(s *Scan) (ResolvedPaths, error) {
	encoder := s.find("encoder")
	decoder := s.find("decoder")
	if encoder == "" {
		return ResolvedPaths{}, fmt.Errorf("missing encoder.onnx")
	}
	if decoder == "" {
		return ResolvedPaths{}, fmt.Errorf("missing decoder.onnx")
	}
	if s.find("joiner") != "" {
		return ResolvedPaths{}, fmt.Errorf("joiner present, directory looks like a transducer model")
	}
	return ResolvedPaths{Kind: KindWhisper, Encoder: encoder, Decoder: decoder}, nil
}

// resolveEncoderDecoder пара encoder+decoder без joiner-проверки
// (fire-red-asr, canary)
func resolveEncoderDecoder(s *Scan, kind Kind) (ResolvedPaths, error) {
	encoder := s.find("encoder")
	decoder := s.find("decoder")
	if encoder == "" {
		return ResolvedPaths{}, fmt.Errorf("missing encoder.onnx")
	}
	if decoder == "" {
		return ResolvedPaths{}, fmt.Errorf("missing decoder.onnx")
	}
	return ResolvedPaths{Kind: kind, Encoder: encoder, Decoder: decoder}, nil
}

// resolveMoonshine требует фиксированную четвёрку файлов
func resolveMoonshine(s *Scan) (ResolvedPaths, error) {
	preprocess := s.find("preprocess")
	encode := s.find("encode")
	uncached := s.find("uncached_decode")
	cached := s.find("cached_decode")
	switch {
	case preprocess == "":
		return ResolvedPaths{}, fmt.Errorf("missing preprocess.onnx")
	case encode == "":
		return ResolvedPaths{}, fmt.Errorf("missing encode.onnx")
	case uncached == "":
		return ResolvedPaths{}, fmt.Errorf("missing uncached_decode.onnx")
	case cached == "":
		return ResolvedPaths{}, fmt.Errorf("missing cached_decode.onnx")
	}
	return ResolvedPaths{
		Kind:            KindMoonshine,
		Preprocessor:    preprocess,
		Encoder:         encode,
		UncachedDecoder: uncached,
		CachedDecoder:   cached,
	}, nil
}

// resolveFunAsrNano требует набор encoder-adaptor/llm/embedding
// и vocab.json (возможно вложенный)
func resolveFunAsrNano(s *Scan) (ResolvedPaths, error) {
	adaptor := s.find("encoder_adapter")
	llm := s.find("llm")
	embedding := s.find("embedding")
	if adaptor == "" {
		return ResolvedPaths{}, fmt.Errorf("missing encoder_adapter.onnx")
	}
	if llm == "" {
		return ResolvedPaths{}, fmt.Errorf("missing llm.onnx")
	}
	if embedding == "" {
		return ResolvedPaths{}, fmt.Errorf("missing embedding.onnx")
	}
	vocab := s.funasrVocab()
	if vocab == "" {
		return ResolvedPaths{}, fmt.Errorf("missing vocab.json (searched directory and tokenizer subdirectories)")
	}
	return ResolvedPaths{
		Kind:           KindFunAsrNano,
		EncoderAdaptor: adaptor,
		LLM:            llm,
		Embedding:      embedding,
		VocabJSON:      vocab,
	}, nil
}
