package models

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// modelDir создаёт директорию модели с заданным именем и набором файлов
func modelDir(t *testing.T, name string, files ...string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestResolveDirectoryMissing(t *testing.T) {
	res := Resolve("/nonexistent/path", QuantDefault, KindAuto)
	if res.Ok {
		t.Fatal("expected failure for missing directory")
	}
	if res.SelectedKind != KindUnknown {
		t.Errorf("expected unknown kind, got %s", res.SelectedKind)
	}
	if !strings.Contains(res.Error, "not found") {
		t.Errorf("unexpected error: %s", res.Error)
	}
}

func TestResolveTransducerPlain(t *testing.T) {
	dir := modelDir(t, "zipformer-ru",
		"encoder.onnx", "decoder.onnx", "joiner.onnx", "tokens.txt")

	res := Resolve(dir, QuantDefault, KindAuto)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
	if res.SelectedKind != KindTransducer {
		t.Errorf("expected transducer, got %s", res.SelectedKind)
	}
	if res.Paths.Encoder == "" || res.Paths.Decoder == "" || res.Paths.Joiner == "" {
		t.Error("transducer paths must be fully populated")
	}
	if res.Paths.Tokens == "" {
		t.Error("tokens path must be populated")
	}
}

func TestResolveTransducerNemoHint(t *testing.T) {
	dir := modelDir(t, "nemo-parakeet-tdt-0.6b",
		"encoder.onnx", "decoder.onnx", "joiner.onnx", "tokens.txt")

	res := Resolve(dir, QuantDefault, KindAuto)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
	if res.SelectedKind != KindNemoTransducer {
		t.Errorf("expected nemo-transducer, got %s", res.SelectedKind)
	}
}

func TestResolveQuantPreference(t *testing.T) {
	dir := modelDir(t, "paraformer-zh",
		"model.onnx", "model.int8.onnx", "tokens.txt")

	cases := []struct {
		quant QuantPreference
		want  string
	}{
		{QuantPreferInt8, "model.int8.onnx"},
		{QuantPreferFull, "model.onnx"},
		{QuantDefault, "model.int8.onnx"},
	}
	for _, c := range cases {
		res := Resolve(dir, c.quant, KindAuto)
		if !res.Ok {
			t.Fatalf("quant=%q: resolve failed: %s", c.quant, res.Error)
		}
		if got := filepath.Base(res.Paths.Model); got != c.want {
			t.Errorf("quant=%q: expected %s, got %s", c.quant, c.want, got)
		}
	}
}

func TestResolveCtcNameHints(t *testing.T) {
	cases := []struct {
		dirName string
		want    Kind
	}{
		{"nemo-ctc-en", KindNemoCtc},
		{"parakeet-ctc-1.1b", KindNemoCtc},
		{"wenet-u2pp-conformer", KindWenetCtc},
		{"sense-voice-small", KindSenseVoice},
		{"some-ctc-model", KindGenericCtc},
	}
	for _, c := range cases {
		dir := modelDir(t, c.dirName, "model.onnx", "tokens.txt")
		res := Resolve(dir, QuantDefault, KindAuto)
		if !res.Ok {
			t.Fatalf("%s: resolve failed: %s", c.dirName, res.Error)
		}
		if res.SelectedKind != c.want {
			t.Errorf("%s: expected %s, got %s", c.dirName, c.want, res.SelectedKind)
		}
	}
}

func TestResolveWhisperByAbsentJoiner(t *testing.T) {
	dir := modelDir(t, "whisper-small",
		"encoder.onnx", "decoder.onnx")

	res := Resolve(dir, QuantDefault, KindAuto)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
	if res.SelectedKind != KindWhisper {
		t.Errorf("expected whisper, got %s", res.SelectedKind)
	}
	if res.Paths.Joiner != "" {
		t.Error("whisper must not carry a joiner path")
	}
}

func TestResolveWhisperNoTokensRequired(t *testing.T) {
	// У whisper собственный токенизатор: отсутствие tokens.txt не ошибка
	dir := modelDir(t, "whisper-base", "encoder.onnx", "decoder.onnx")
	res := Resolve(dir, QuantDefault, KindAuto)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
}

func TestResolveTokensMissingDistinctError(t *testing.T) {
	dir := modelDir(t, "zipformer-en",
		"encoder.onnx", "decoder.onnx", "joiner.onnx")

	res := Resolve(dir, QuantDefault, KindAuto)
	if res.Ok {
		t.Fatal("expected failure without tokens file")
	}
	if !strings.Contains(res.Error, "tokens") {
		t.Errorf("expected tokens-specific error, got: %s", res.Error)
	}
	if strings.Contains(res.Error, "no compatible") {
		t.Error("missing tokens must be reported separately from no-kind-detected")
	}
}

func TestResolveExplicitKindNoFallback(t *testing.T) {
	// Файлы трансдьюсера на месте, но запрошен moonshine
	dir := modelDir(t, "zipformer",
		"encoder.onnx", "decoder.onnx", "joiner.onnx", "tokens.txt")

	res := Resolve(dir, QuantDefault, KindMoonshine)
	if res.Ok {
		t.Fatal("explicit kind with missing files must fail")
	}
	if !strings.Contains(res.Error, string(KindMoonshine)) {
		t.Errorf("error must name the requested kind: %s", res.Error)
	}
	if res.SelectedKind != KindUnknown {
		t.Errorf("no silent fallback allowed, got %s", res.SelectedKind)
	}
}

func TestResolveExplicitKindValidates(t *testing.T) {
	dir := modelDir(t, "models-dir",
		"encoder.onnx", "decoder.onnx", "joiner.onnx", "tokens.txt")

	res := Resolve(dir, QuantDefault, KindNemoTransducer)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
	if res.SelectedKind != KindNemoTransducer {
		t.Errorf("expected nemo-transducer, got %s", res.SelectedKind)
	}
}

func TestResolveMoonshine(t *testing.T) {
	dir := modelDir(t, "moonshine-tiny",
		"preprocess.onnx", "encode.onnx", "uncached_decode.onnx",
		"cached_decode.onnx", "tokens.txt")

	res := Resolve(dir, QuantDefault, KindAuto)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
	if res.SelectedKind != KindMoonshine {
		t.Errorf("expected moonshine, got %s", res.SelectedKind)
	}
	if res.Paths.Preprocessor == "" || res.Paths.UncachedDecoder == "" || res.Paths.CachedDecoder == "" {
		t.Error("moonshine paths must be fully populated")
	}
}

func TestResolveFunAsrNanoNestedVocab(t *testing.T) {
	dir := modelDir(t, "funasr-nano",
		"encoder_adapter.onnx", "llm.onnx", "embedding.onnx",
		"Qwen3-0.6B/vocab.json")

	res := Resolve(dir, QuantDefault, KindAuto)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
	if res.SelectedKind != KindFunAsrNano {
		t.Errorf("expected funasr-nano, got %s", res.SelectedKind)
	}
	if !strings.HasSuffix(res.Paths.VocabJSON, "vocab.json") {
		t.Errorf("nested vocab.json not resolved: %s", res.Paths.VocabJSON)
	}
}

func TestResolveFunAsrNanoTopLevelVocabPreferred(t *testing.T) {
	dir := modelDir(t, "funasr-nano",
		"encoder_adapter.onnx", "llm.onnx", "embedding.onnx",
		"vocab.json", "Qwen3-0.6B/vocab.json")

	res := Resolve(dir, QuantDefault, KindAuto)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
	if filepath.Dir(res.Paths.VocabJSON) != dir {
		t.Errorf("top-level vocab.json must win, got %s", res.Paths.VocabJSON)
	}
}

func TestResolveFireRedAsrBeatsWhisper(t *testing.T) {
	dir := modelDir(t, "fire-red-asr-large",
		"encoder.onnx", "decoder.onnx", "tokens.txt")

	res := Resolve(dir, QuantDefault, KindAuto)
	if !res.Ok {
		t.Fatalf("resolve failed: %s", res.Error)
	}
	if res.SelectedKind != KindFireRedAsr {
		t.Errorf("expected fire-red-asr, got %s", res.SelectedKind)
	}
}

func TestResolveNoCompatibleKind(t *testing.T) {
	dir := modelDir(t, "junk", "readme.md")
	res := Resolve(dir, QuantDefault, KindAuto)
	if res.Ok {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "no compatible") {
		t.Errorf("unexpected error: %s", res.Error)
	}
}

func TestResolveDeterministic(t *testing.T) {
	dir := modelDir(t, "nemo-parakeet",
		"encoder.onnx", "decoder.onnx", "joiner.onnx", "tokens.txt")

	a := Resolve(dir, QuantPreferInt8, KindAuto)
	b := Resolve(dir, QuantPreferInt8, KindAuto)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("resolve is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(""); err != nil || k != KindAuto {
		t.Errorf("empty string must parse as auto")
	}
	if k, err := ParseKind("sense-voice"); err != nil || k != KindSenseVoice {
		t.Errorf("sense-voice parse failed: %v %v", k, err)
	}
	if _, err := ParseKind("bogus"); err == nil {
		t.Error("unknown kind string must error")
	}
}

func TestParseQuant(t *testing.T) {
	if q, err := ParseQuant(""); err != nil || q != QuantDefault {
		t.Errorf("empty string must parse as default preference")
	}
	if q, err := ParseQuant("prefer-full"); err != nil || q != QuantPreferFull {
		t.Errorf("prefer-full parse failed: %v %v", q, err)
	}
	// Опечатка не должна молча превращаться в умолчание
	if _, err := ParseQuant("prefer-fp32"); err == nil {
		t.Error("unknown quantization preference must error")
	}
}
