package ai

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pocketspeech/models"
)

func writeHotwords(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hotwords.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateHotwordsOk(t *testing.T) {
	path := writeHotwords(t, "привет мир\nPOCKET SPEECH :2.0\n# comment\n\n")
	if err := ValidateHotwordsFile(path, models.KindTransducer); err != nil {
		t.Errorf("expected valid file, got: %v", err)
	}
}

func TestValidateHotwordsUnsupportedKind(t *testing.T) {
	path := writeHotwords(t, "hello\n")
	err := ValidateHotwordsFile(path, models.KindWhisper)
	if !errors.Is(err, ErrHotwordsUnsupported) {
		t.Errorf("expected ErrHotwordsUnsupported, got: %v", err)
	}
}

func TestValidateHotwordsBadScore(t *testing.T) {
	path := writeHotwords(t, "hello :abc\n")
	if err := ValidateHotwordsFile(path, models.KindNemoTransducer); err == nil {
		t.Error("expected error for non-numeric score")
	}
}

func TestValidateHotwordsEmptyFile(t *testing.T) {
	path := writeHotwords(t, "# only comments\n\n")
	if err := ValidateHotwordsFile(path, models.KindTransducer); err == nil {
		t.Error("expected error for file without phrases")
	}
}

func TestValidateHotwordsMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.txt")
	if err := ValidateHotwordsFile(missing, models.KindTransducer); err == nil {
		t.Error("expected error for missing file")
	}
}
