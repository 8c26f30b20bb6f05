package session

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"pocketspeech/ai"
	"pocketspeech/models"
)

// Ошибки реестра
var (
	ErrInstanceExists   = errors.New("instance already exists")
	ErrInstanceNotFound = errors.New("instance not found")
	ErrStreamExists     = errors.New("stream already exists")
	ErrStreamNotFound   = errors.New("stream not found")
)

// InstanceInfo снимок состояния инстанса для наружного потребителя
type InstanceInfo struct {
	ID        string      `json:"id"`
	Kind      models.Kind `json:"kind"`
	Streaming bool        `json:"streaming"`
	Streams   int         `json:"streams"`
}

// Instance именованный инстанс движка с принадлежащими ему потоками.
// Поле mu сериализует обращения к движку между собой и с выгрузкой:
// operation и unload не могут пересечься на одном инстансе.
type Instance struct {
	id      string
	kind    models.Kind
	config  models.DetectResult // снимок конфигурации на момент создания
	options ai.RecognizerOptions

	mu      sync.Mutex
	rec     Recognizer
	streams map[string]Stream
	closed  bool
}

// Registry реестр инстансов движка. Создаётся на хост-сессию,
// никакого процессного синглтона: тесты держат изолированные реестры.
type Registry struct {
	factory EngineFactory

	mu        sync.RWMutex
	instances map[string]*Instance
	streams   map[string]string // streamID -> instanceID (обратный индекс)
}

// NewRegistry создаёт пустой реестр поверх фабрики движков
func NewRegistry(factory EngineFactory) *Registry {
	return &Registry{
		factory:   factory,
		instances: make(map[string]*Instance),
		streams:   make(map[string]string),
	}
}

// CreateInstance создаёт инстанс движка под заданным идентификатором.
// Дубликат идентификатора — ошибка; при ошибке фабрики запись
// не сохраняется, полусозданных инстансов не бывает.
func (r *Registry) CreateInstance(id string, res models.DetectResult, opts ai.RecognizerOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.instances[id]; dup {
		return fmt.Errorf("%w: %s", ErrInstanceExists, id)
	}

	rec, err := r.factory(res, opts)
	if err != nil {
		return fmt.Errorf("failed to create instance %s: %w", id, err)
	}

	r.instances[id] = &Instance{
		id:      id,
		kind:    rec.Kind(),
		config:  res,
		options: opts,
		rec:     rec,
		streams: make(map[string]Stream),
	}
	log.Printf("Registry: instance %s created (%s, streaming=%v)", id, rec.Kind(), rec.IsStreaming())
	return nil
}

// Info возвращает снимок инстанса
func (r *Registry) Info(id string) (InstanceInfo, error) {
	r.mu.RLock()
	inst, ok := r.instances[id]
	r.mu.RUnlock()
	if !ok {
		return InstanceInfo{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	return InstanceInfo{
		ID:        inst.id,
		Kind:      inst.kind,
		Streaming: inst.rec != nil && inst.rec.IsStreaming(),
		Streams:   len(inst.streams),
	}, nil
}

// List возвращает снимки всех инстансов
func (r *Registry) List() []InstanceInfo {
	r.mu.RLock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	infos := make([]InstanceInfo, 0, len(ids))
	for _, id := range ids {
		if info, err := r.Info(id); err == nil {
			infos = append(infos, info)
		}
	}
	return infos
}

// ConfigSnapshot возвращает конфигурацию, с которой инстанс создавался
func (r *Registry) ConfigSnapshot(id string) (models.DetectResult, ai.RecognizerOptions, error) {
	r.mu.RLock()
	inst, ok := r.instances[id]
	r.mu.RUnlock()
	if !ok {
		return models.DetectResult{}, ai.RecognizerOptions{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return inst.config, inst.options, nil
}

// CreateStream создаёт поток распознавания у живого инстанса.
// Дубликат идентификатора потока — ошибка без побочных эффектов.
func (r *Registry) CreateStream(instanceID, streamID string) error {
	r.mu.Lock()
	inst, ok := r.instances[instanceID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	if _, dup := r.streams[streamID]; dup {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStreamExists, streamID)
	}
	// Резервируем запись обратного индекса до обращения к движку,
	// чтобы конкурентное создание того же streamID не прошло дважды
	r.streams[streamID] = instanceID
	r.mu.Unlock()

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.closed {
		r.dropStreamEntry(streamID, instanceID)
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}

	streaming, ok := inst.rec.(StreamingRecognizer)
	if !ok {
		r.dropStreamEntry(streamID, instanceID)
		return fmt.Errorf("instance %s: %w", instanceID, ai.ErrNotStreaming)
	}

	st, err := streaming.CreateStream()
	if err != nil {
		r.dropStreamEntry(streamID, instanceID)
		return fmt.Errorf("failed to create stream %s: %w", streamID, err)
	}
	inst.streams[streamID] = st
	log.Printf("Registry: stream %s created on %s", streamID, instanceID)
	return nil
}

// WithStream выполняет операцию над потоком, разрешая владельца
// через обратный индекс. Неизвестный streamID — ошибка, не паника.
// Операция выполняется под мьютексом инстанса: выгрузка инстанса
// не пересечётся с идущим декодированием.
func (r *Registry) WithStream(streamID string, op func(Stream) error) error {
	r.mu.RLock()
	instanceID, ok := r.streams[streamID]
	var inst *Instance
	if ok {
		inst = r.instances[instanceID]
	}
	r.mu.RUnlock()

	if inst == nil {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	st, ok := inst.streams[streamID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	}
	return op(st)
}

// ReleaseStream освобождает поток. Идемпотентен: отсутствующий
// идентификатор — успех без действий.
func (r *Registry) ReleaseStream(streamID string) error {
	r.mu.Lock()
	instanceID, ok := r.streams[streamID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.streams, streamID)
	inst := r.instances[instanceID]
	r.mu.Unlock()

	if inst == nil {
		return nil
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	if st, ok := inst.streams[streamID]; ok {
		st.Close()
		delete(inst.streams, streamID)
	}
	log.Printf("Registry: stream %s released", streamID)
	return nil
}

// Transcribe декодирует высказывание целиком через офлайн-инстанс
func (r *Registry) Transcribe(instanceID string, samples []float32, sampleRate int) (ai.Result, error) {
	r.mu.RLock()
	inst, ok := r.instances[instanceID]
	r.mu.RUnlock()
	if !ok {
		return ai.Result{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.closed {
		return ai.Result{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	return inst.rec.Transcribe(samples, sampleRate)
}

// UnloadInstance выгружает инстанс: сначала из обоих индексов под
// общим замком (никто не увидит streamID, ведущий в пустоту), затем
// закрываются потоки и движок под мьютексом инстанса. Идемпотентен.
func (r *Registry) UnloadInstance(instanceID string) error {
	r.mu.Lock()
	inst, ok := r.instances[instanceID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.instances, instanceID)
	for sid, owner := range r.streams {
		if owner == instanceID {
			delete(r.streams, sid)
		}
	}
	r.mu.Unlock()

	inst.mu.Lock()
	defer inst.mu.Unlock()

	for sid, st := range inst.streams {
		st.Close()
		delete(inst.streams, sid)
	}
	if inst.rec != nil {
		inst.rec.Close()
		inst.rec = nil
	}
	inst.closed = true
	log.Printf("Registry: instance %s unloaded", instanceID)
	return nil
}

// Close выгружает все инстансы
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.UnloadInstance(id)
	}
}

// dropStreamEntry убирает запись обратного индекса, если она всё ещё
// принадлежит ожидаемому инстансу
func (r *Registry) dropStreamEntry(streamID, instanceID string) {
	r.mu.Lock()
	if owner, ok := r.streams[streamID]; ok && owner == instanceID {
		delete(r.streams, streamID)
	}
	r.mu.Unlock()
}
