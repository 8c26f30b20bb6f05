package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pocketspeech/probe"
)

// InstalledModel установленная модель: поддиректория хранилища
// и результат её классификации
type InstalledModel struct {
	ID        string  `json:"id"` // имя поддиректории
	Directory string  `json:"directory"`
	Kind      Kind    `json:"kind"`    // unknown если классификация не удалась
	TtsKind   TtsKind `json:"ttsKind"` // unknown если это не синтезирующая модель
}

// Store хранилище установленных моделей: базовая директория,
// каждая модель — её поддиректория
type Store struct {
	baseDir string
	mu      sync.RWMutex
	cache   map[string]InstalledModel
}

// NewStore открывает хранилище моделей, создавая директорию при необходимости
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	return &Store{
		baseDir: baseDir,
		cache:   make(map[string]InstalledModel),
	}, nil
}

// BaseDir возвращает путь к директории хранилища
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Dir возвращает путь к директории модели по её идентификатору
func (s *Store) Dir(id string) string {
	return filepath.Join(s.baseDir, id)
}

// IsInstalled проверяет что директория модели существует
func (s *Store) IsInstalled(id string) bool {
	return probe.IsDir(s.Dir(id))
}

// List перечисляет установленные модели с результатом классификации.
// Классификация кэшируется по идентификатору до следующего Refresh.
func (s *Store) List() []InstalledModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := probe.ListDirs(s.baseDir)
	sort.Strings(ids)

	result := make([]InstalledModel, 0, len(ids))
	for _, id := range ids {
		if m, ok := s.cache[id]; ok {
			result = append(result, m)
			continue
		}
		m := s.classify(id)
		s.cache[id] = m
		result = append(result, m)
	}
	return result
}

// Refresh сбрасывает кэш классификации
func (s *Store) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]InstalledModel)
}

// classify пробует распознающий и синтезирующий резолверы по очереди
func (s *Store) classify(id string) InstalledModel {
	dir := s.Dir(id)
	m := InstalledModel{
		ID:        id,
		Directory: dir,
		Kind:      KindUnknown,
		TtsKind:   TtsKindUnknown,
	}
	if res := Resolve(dir, QuantDefault, KindAuto); res.Ok {
		m.Kind = res.SelectedKind
	}
	if res := ResolveTts(dir, TtsKindAuto); res.Ok {
		m.TtsKind = res.SelectedKind
	}
	return m
}
