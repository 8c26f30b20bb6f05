package ai

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"pocketspeech/models"
)

// ValidateHotwordsFile проверяет файл подсказок перед передачей движку.
// Формат: одна фраза на строку, опционально ":score" в конце строки.
// Движок применяет подсказки только к трансдьюсерным семействам.
func ValidateHotwordsFile(path string, kind models.Kind) error {
	if !kind.SupportsHotwords() {
		return fmt.Errorf("%w: %s", ErrHotwordsUnsupported, kind)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("hotwords file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	phrases := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !utf8.ValidString(line) {
			return fmt.Errorf("malformed hotwords file %s: invalid utf-8 at line %d", path, lineNo)
		}
		// Опциональный вес после последнего двоеточия
		if idx := strings.LastIndex(line, ":"); idx >= 0 {
			score := strings.TrimSpace(line[idx+1:])
			if score != "" {
				if _, err := strconv.ParseFloat(score, 32); err != nil {
					return fmt.Errorf("malformed hotwords file %s: bad score %q at line %d", path, score, lineNo)
				}
			}
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			return fmt.Errorf("malformed hotwords file %s: empty phrase at line %d", path, lineNo)
		}
		phrases++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("hotwords file: %w", err)
	}
	if phrases == 0 {
		return fmt.Errorf("malformed hotwords file %s: no phrases", path)
	}
	return nil
}
