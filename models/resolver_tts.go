package models

import (
	"fmt"
	"path/filepath"

	"pocketspeech/probe"
)

const (
	voicesFile    = "voices.bin"
	espeakDataDir = "espeak-ng-data"
)

// TtsRule правило автоопределения синтезирующего семейства
type TtsRule struct {
	Kind  TtsKind
	Match func(s *Scan) (TtsResolvedPaths, bool)
}

// TtsAutoLadder фиксированная лестница правил для синтеза.
// Порядок существенен: matcha перехватывает пару акустика+вокодер
// раньше zipvoice, kokoro/kitten различаются по voices.bin раньше
// чем сработает запасной vits.
var TtsAutoLadder = []TtsRule{
	{TtsKindMatcha, func(s *Scan) (TtsResolvedPaths, bool) {
		p, err := resolveMatcha(s)
		return p, err == nil
	}},
	{TtsKindZipvoice, func(s *Scan) (TtsResolvedPaths, bool) {
		p, err := resolveZipvoice(s)
		return p, err == nil
	}},
	{TtsKindKitten, func(s *Scan) (TtsResolvedPaths, bool) {
		// kitten выбирается только по явной подсказке в имени;
		// при обеих подсказках или без подсказки побеждает kokoro
		if !s.hasHint("kitten") || s.hasHint("kokoro") {
			return TtsResolvedPaths{}, false
		}
		p, err := resolveVoiced(s, TtsKindKitten)
		return p, err == nil
	}},
	{TtsKindKokoro, func(s *Scan) (TtsResolvedPaths, bool) {
		p, err := resolveVoiced(s, TtsKindKokoro)
		return p, err == nil
	}},
	{TtsKindVits, func(s *Scan) (TtsResolvedPaths, bool) {
		p, err := resolveVits(s)
		return p, err == nil
	}},
}

// ResolveTts определяет синтезирующую модель в директории.
// Каждое семейство дополнительно требует директорию языковых
// ресурсов и словарь токенов.
func ResolveTts(dir string, explicit TtsKind) TtsDetectResult {
	if !probe.IsDir(dir) {
		return failTtsResult(fmt.Errorf("model directory not found or not a directory: %s", dir), nil)
	}

	s := NewScan(dir, QuantDefault)

	if explicit != TtsKindAuto && explicit != "" {
		paths, err := resolveTtsKind(s, explicit)
		if err != nil {
			return failTtsResult(fmt.Errorf("tts model kind %s: %w", explicit, err), nil)
		}
		detected := []DetectedModel{{Kind: Kind(explicit), Directory: dir}}
		return finishResolveTts(s, paths, detected)
	}

	var detected []DetectedModel
	var selected TtsResolvedPaths
	for _, rule := range TtsAutoLadder {
		paths, ok := rule.Match(s)
		if !ok {
			continue
		}
		detected = append(detected, DetectedModel{Kind: Kind(rule.Kind), Directory: dir})
		if selected.Kind == "" {
			selected = paths
		}
	}

	if selected.Kind == "" {
		return failTtsResult(fmt.Errorf("no compatible tts model detected in %s", dir), nil)
	}
	return finishResolveTts(s, selected, detected)
}

// finishResolveTts применяет общие для всех семейств требования
func finishResolveTts(s *Scan, paths TtsResolvedPaths, detected []DetectedModel) TtsDetectResult {
	paths.Tokens = s.tokens()
	if paths.Tokens == "" {
		return failTtsResult(fmt.Errorf("tokens file not found: %s", filepath.Join(s.Dir, tokensFile)), detected)
	}

	dataDir := filepath.Join(s.Dir, espeakDataDir)
	if !probe.IsDir(dataDir) {
		return failTtsResult(fmt.Errorf("language data directory not found: %s", dataDir), detected)
	}
	paths.DataDir = dataDir

	return TtsDetectResult{
		Ok:             true,
		SelectedKind:   paths.Kind,
		DetectedModels: detected,
		Paths:          paths,
	}
}

func resolveTtsKind(s *Scan, kind TtsKind) (TtsResolvedPaths, error) {
	switch kind {
	case TtsKindMatcha:
		return resolveMatcha(s)
	case TtsKindZipvoice:
		return resolveZipvoice(s)
	case TtsKindKokoro, TtsKindKitten:
		return resolveVoiced(s, kind)
	case TtsKindVits:
		return resolveVits(s)
	default:
		return TtsResolvedPaths{}, fmt.Errorf("unknown tts model kind: %q", kind)
	}
}

// vocoder ищет файл вокодера по известным именам семейств вокодеров
func (s *Scan) vocoder() string {
	for _, f := range s.files {
		if !probe.HasSuffixFold(f.Name, ".onnx") {
			continue
		}
		if probe.ContainsFold(f.Name, "vocos") ||
			probe.ContainsFold(f.Name, "hifigan") ||
			probe.ContainsFold(f.Name, "vocoder") {
			return f.Path
		}
	}
	return ""
}

// resolveMatcha требует пару акустическая модель + вокодер
func resolveMatcha(s *Scan) (TtsResolvedPaths, error) {
	vocoder := s.vocoder()
	if vocoder == "" {
		return TtsResolvedPaths{}, fmt.Errorf("missing vocoder model (vocos/hifigan)")
	}

	var acoustic string
	for _, f := range s.files {
		if !probe.HasSuffixFold(f.Name, ".onnx") || f.Path == vocoder {
			continue
		}
		if probe.ContainsFold(f.Name, "acoustic") || probe.ContainsFold(f.Name, "steps") {
			acoustic = f.Path
			break
		}
	}
	if acoustic == "" {
		return TtsResolvedPaths{}, fmt.Errorf("missing acoustic model (model-steps-*.onnx)")
	}
	return TtsResolvedPaths{Kind: TtsKindMatcha, AcousticModel: acoustic, Vocoder: vocoder}, nil
}

// resolveZipvoice требует тройку encoder+decoder+вокодер
func resolveZipvoice(s *Scan) (TtsResolvedPaths, error) {
	encoder := s.find("encoder")
	decoder := s.find("decoder")
	vocoder := s.vocoder()
	if encoder == "" {
		return TtsResolvedPaths{}, fmt.Errorf("missing encoder.onnx")
	}
	if decoder == "" {
		return TtsResolvedPaths{}, fmt.Errorf("missing decoder.onnx")
	}
	if vocoder == "" {
		return TtsResolvedPaths{}, fmt.Errorf("missing vocoder model (vocos/hifigan)")
	}
	return TtsResolvedPaths{Kind: TtsKindZipvoice, Encoder: encoder, Decoder: decoder, Vocoder: vocoder}, nil
}

// resolveVoiced kokoro/kitten: акустическая модель + банк голосов
func resolveVoiced(s *Scan, kind TtsKind) (TtsResolvedPaths, error) {
	voices := s.file(voicesFile)
	if voices == "" {
		return TtsResolvedPaths{}, fmt.Errorf("missing %s", voicesFile)
	}
	model := s.find("model")
	if model == "" {
		model = probe.LargestMatching(s.Dir, ".onnx")
	}
	if model == "" {
		return TtsResolvedPaths{}, fmt.Errorf("missing model.onnx")
	}
	return TtsResolvedPaths{Kind: kind, Model: model, Voices: voices}, nil
}

// resolveVits запасной вариант: одиночная модель без банка голосов
func resolveVits(s *Scan) (TtsResolvedPaths, error) {
	model := s.find("model")
	if model == "" {
		model = probe.LargestMatching(s.Dir, ".onnx")
	}
	if model == "" {
		return TtsResolvedPaths{}, fmt.Errorf("missing model.onnx")
	}
	return TtsResolvedPaths{Kind: TtsKindVits, Model: model}, nil
}
