// Package probe содержит утилиты для инспекции файловой системы:
// проверки существования, листинг директорий, поиск файлов моделей.
// Все функции чистые, без разделяемого состояния.
package probe

import (
	"os"
	"path/filepath"
	"strings"
)

// FileEntry файл найденный при листинге директории
type FileEntry struct {
	Name string // имя файла (без пути)
	Path string // полный путь
	Size int64  // размер в байтах
}

// Exists проверяет существование файла или директории
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir проверяет что путь существует и является директорией
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile проверяет что путь существует и является обычным файлом
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ListFiles возвращает файлы директории (без рекурсии).
// Поддиректории пропускаются. Ошибка чтения даёт пустой список.
func ListFiles(dir string) []FileEntry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	files := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileEntry{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files
}

// ListFilesDeep возвращает файлы директории с рекурсией до maxDepth уровней.
// maxDepth=0 эквивалентен ListFiles, maxDepth=1 добавляет файлы
// непосредственных поддиректорий и т.д.
func ListFilesDeep(dir string, maxDepth int) []FileEntry {
	files := ListFiles(dir)
	if maxDepth <= 0 {
		return files
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return files
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := ListFilesDeep(filepath.Join(dir, e.Name()), maxDepth-1)
		files = append(files, sub...)
	}
	return files
}

// ListDirs возвращает имена непосредственных поддиректорий
func ListDirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

// HasSuffixFold проверяет суффикс имени без учёта регистра
func HasSuffixFold(name, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix))
}

// ContainsFold проверяет подстроку без учёта регистра
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// FindFile ищет файл с точным именем (без учёта регистра) в директории.
// Возвращает полный путь или пустую строку.
func FindFile(dir, name string) string {
	for _, f := range ListFiles(dir) {
		if strings.EqualFold(f.Name, name) {
			return f.Path
		}
	}
	return ""
}

// FindFirst ищет первый существующий файл из списка имён.
// Порядок имён задаёт приоритет.
func FindFirst(dir string, names ...string) string {
	for _, name := range names {
		if p := FindFile(dir, name); p != "" {
			return p
		}
	}
	return ""
}

// LargestMatching выбирает самый большой файл с данным суффиксом
// (без учёта регистра). Возвращает пустую строку если совпадений нет.
func LargestMatching(dir, suffix string) string {
	var best FileEntry
	for _, f := range ListFiles(dir) {
		if !HasSuffixFold(f.Name, suffix) {
			continue
		}
		if best.Path == "" || f.Size > best.Size {
			best = f
		}
	}
	return best.Path
}

// LargestMatchingToken выбирает самый большой файл, имя которого содержит
// token и оканчивается на suffix (оба без учёта регистра).
func LargestMatchingToken(dir, token, suffix string) string {
	var best FileEntry
	for _, f := range ListFiles(dir) {
		if !HasSuffixFold(f.Name, suffix) || !ContainsFold(f.Name, token) {
			continue
		}
		if best.Path == "" || f.Size > best.Size {
			best = f
		}
	}
	return best.Path
}
