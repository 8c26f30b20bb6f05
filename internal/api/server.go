// Package api поднимает управляющий канал: WebSocket и gRPC поверх
// одного диспетчера сообщений. Оба транспорта гоняют одну и ту же
// JSON-структуру Message.
package api

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pocketspeech/ai"
	"pocketspeech/audio"
	"pocketspeech/internal/config"
	"pocketspeech/internal/service"
	"pocketspeech/models"
	"pocketspeech/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client транспортное соединение: WebSocket или gRPC stream
type client interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Server struct {
	Config        *config.Config
	Store         *models.Store
	Registry      *session.Registry
	Streaming     *service.StreamingService
	Transcription *service.TranscriptionService
	Capture       *audio.Capture

	mu      sync.Mutex
	clients map[client]bool

	// Синтез: один загруженный синтезатор и его генератор
	synthMu   sync.Mutex
	synth     *ai.Synthesizer
	generator *service.Generator
}

func NewServer(
	cfg *config.Config,
	store *models.Store,
	registry *session.Registry,
	streaming *service.StreamingService,
	transcription *service.TranscriptionService,
	capture *audio.Capture,
) *Server {
	return &Server{
		Config:        cfg,
		Store:         store,
		Registry:      registry,
		Streaming:     streaming,
		Transcription: transcription,
		Capture:       capture,
		clients:       make(map[client]bool),
	}
}

func (s *Server) Start() {
	http.HandleFunc("/ws", s.handleWebSocket)

	if s.Config.GRPCAddr != "" {
		go s.startGRPCServer()
	}

	log.Printf("Server: listening on :%s", s.Config.Port)
	if err := http.ListenAndServe(":"+s.Config.Port, nil); err != nil {
		log.Fatal("ListenAndServe:", err)
	}
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 {
		return
	}
	for c := range s.clients {
		if err := c.WriteJSON(msg); err != nil {
			log.Printf("Server: write error: %v", err)
			c.Close()
			delete(s.clients, c)
		}
	}
}

func (s *Server) addClient(c client) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
}

func (s *Server) removeClient(c client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade:", err)
		return
	}

	s.addClient(conn)
	defer s.removeClient(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Println("Read:", err)
			break
		}
		s.processMessage(conn, msg)
	}
}

func (s *Server) processMessage(conn client, msg Message) {
	switch msg.Type {
	case "list_models":
		conn.WriteJSON(Message{Type: "models_list", Models: s.Store.List()})

	case "refresh_models":
		s.Store.Refresh()
		conn.WriteJSON(Message{Type: "models_list", Models: s.Store.List()})

	case "detect":
		res, err := s.detect(msg)
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "detect_result", Detect: &res})

	case "detect_tts":
		res, err := s.detectTts(msg)
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "tts_detect_result", TtsDetect: &res})

	case "create_instance":
		res, err := s.detect(msg)
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		instanceID := msg.InstanceID
		if instanceID == "" {
			instanceID = uuid.New().String()
		}
		if err := s.Registry.CreateInstance(instanceID, res, s.recognizerOptions(msg)); err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "instance_created", InstanceID: instanceID, Detect: &res})

	case "unload_instance":
		if msg.InstanceID == "" {
			conn.WriteJSON(Message{Type: "error", Data: "instanceId is required"})
			return
		}
		s.Registry.UnloadInstance(msg.InstanceID)
		conn.WriteJSON(Message{Type: "instance_unloaded", InstanceID: msg.InstanceID})

	case "list_instances":
		conn.WriteJSON(Message{Type: "instances_list", Instances: s.Registry.List()})

	case "create_stream":
		if msg.InstanceID == "" {
			conn.WriteJSON(Message{Type: "error", Data: "instanceId is required"})
			return
		}
		streamID := msg.StreamID
		if streamID == "" {
			streamID = uuid.New().String()
		}
		if err := s.Registry.CreateStream(msg.InstanceID, streamID); err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "stream_created", InstanceID: msg.InstanceID, StreamID: streamID})

	case "push_audio":
		rate := msg.SampleRate
		if rate <= 0 {
			rate = 16000
		}
		result, err := s.Streaming.PushAudio(msg.StreamID, rate, msg.Samples)
		if err != nil {
			conn.WriteJSON(Message{Type: "error", StreamID: msg.StreamID, Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "stream_result", StreamID: msg.StreamID, Result: &result})

	case "reset_stream":
		if err := s.Streaming.ResetStream(msg.StreamID); err != nil {
			conn.WriteJSON(Message{Type: "error", StreamID: msg.StreamID, Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "stream_reset", StreamID: msg.StreamID})

	case "finish_stream":
		result, err := s.Streaming.FinishStream(msg.StreamID)
		if err != nil {
			conn.WriteJSON(Message{Type: "error", StreamID: msg.StreamID, Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "stream_finished", StreamID: msg.StreamID, Result: &result})

	case "release_stream":
		s.Registry.ReleaseStream(msg.StreamID)
		conn.WriteJSON(Message{Type: "stream_released", StreamID: msg.StreamID})

	case "transcribe_file":
		if msg.InstanceID == "" || msg.FilePath == "" {
			conn.WriteJSON(Message{Type: "error", Data: "instanceId and filePath are required"})
			return
		}
		conn.WriteJSON(Message{Type: "transcription_started", InstanceID: msg.InstanceID, FilePath: msg.FilePath})
		go func() {
			tr, err := s.Transcription.TranscribeFile(msg.InstanceID, msg.FilePath, msg.SampleRate)
			if err != nil {
				s.broadcast(Message{Type: "transcription_error", InstanceID: msg.InstanceID, FilePath: msg.FilePath, Error: err.Error()})
				return
			}
			s.broadcast(Message{Type: "transcription_completed", InstanceID: msg.InstanceID, FilePath: msg.FilePath, Transcription: &tr})
		}()

	case "load_tts":
		res, err := s.detectTts(msg)
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		opts := ai.DefaultTtsOptions()
		if msg.NumThreads > 0 {
			opts.NumThreads = msg.NumThreads
		}
		if msg.Provider != "" {
			opts.Provider = msg.Provider
		} else if s.Config != nil {
			opts.Provider = s.Config.Provider
		}
		synth, err := ai.NewSynthesizer(res, opts)
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}

		s.synthMu.Lock()
		if s.synth != nil {
			s.synth.Close()
		}
		s.synth = synth
		s.generator = service.NewGenerator(synth)
		s.generator.OnChunk = func(chunk service.GenerationChunk) {
			s.broadcast(Message{Type: "generation_chunk", Chunk: &chunk, Progress: chunk.Progress})
		}
		s.generator.OnDone = func(cancelled bool, err error) {
			errStr := ""
			if err != nil {
				errStr = err.Error()
			}
			s.broadcast(Message{Type: "generation_done", Cancelled: cancelled, Error: errStr})
		}
		s.synthMu.Unlock()

		// Частота выхода приходит с каждой порцией generation_chunk
		conn.WriteJSON(Message{Type: "tts_loaded", TtsDetect: &res})

	case "unload_tts":
		s.synthMu.Lock()
		if s.generator != nil {
			s.generator.Cancel()
			s.generator = nil
		}
		if s.synth != nil {
			s.synth.Close()
			s.synth = nil
		}
		s.synthMu.Unlock()
		conn.WriteJSON(Message{Type: "tts_unloaded"})

	case "generate":
		s.synthMu.Lock()
		gen := s.generator
		s.synthMu.Unlock()
		if gen == nil {
			conn.WriteJSON(Message{Type: "error", Data: "tts model is not loaded"})
			return
		}
		if err := gen.Start(msg.Text, msg.SpeakerID, msg.Speed); err != nil {
			if errors.Is(err, service.ErrGenerationActive) {
				conn.WriteJSON(Message{Type: "error", Data: "generation already active"})
				return
			}
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "generation_started"})

	case "cancel_generation":
		s.synthMu.Lock()
		gen := s.generator
		s.synthMu.Unlock()
		if gen != nil {
			gen.Cancel()
		}
		conn.WriteJSON(Message{Type: "generation_cancelling"})

	case "get_devices":
		if s.Capture == nil {
			conn.WriteJSON(Message{Type: "error", Data: "audio capture is not available"})
			return
		}
		devices, err := s.Capture.ListDevices()
		if err != nil {
			conn.WriteJSON(Message{Type: "error", Data: err.Error()})
			return
		}
		conn.WriteJSON(Message{Type: "devices", Devices: devices})

	default:
		conn.WriteJSON(Message{Type: "error", Data: "unknown message type: " + msg.Type})
	}
}

// detect разрешает директорию модели из сообщения и запускает резолвер
func (s *Server) detect(msg Message) (models.DetectResult, error) {
	dir := msg.ModelDir
	if dir == "" && msg.ModelID != "" {
		dir = s.Store.Dir(msg.ModelID)
	}
	if dir == "" {
		return models.DetectResult{}, errors.New("modelDir or modelId is required")
	}
	kind, err := models.ParseKind(msg.ModelKind)
	if err != nil {
		return models.DetectResult{}, err
	}
	quant, err := models.ParseQuant(msg.Quant)
	if err != nil {
		return models.DetectResult{}, err
	}
	return models.Resolve(dir, quant, kind), nil
}

func (s *Server) detectTts(msg Message) (models.TtsDetectResult, error) {
	dir := msg.ModelDir
	if dir == "" && msg.ModelID != "" {
		dir = s.Store.Dir(msg.ModelID)
	}
	if dir == "" {
		return models.TtsDetectResult{}, errors.New("modelDir or modelId is required")
	}
	kind, err := models.ParseTtsKind(msg.ModelKind)
	if err != nil {
		return models.TtsDetectResult{}, err
	}
	return models.ResolveTts(dir, kind), nil
}

// recognizerOptions собирает параметры распознавателя из сообщения
// поверх дефолтов
func (s *Server) recognizerOptions(msg Message) ai.RecognizerOptions {
	opts := ai.DefaultRecognizerOptions()
	if msg.NumThreads > 0 {
		opts.NumThreads = msg.NumThreads
	} else if s.Config != nil && s.Config.NumThreads > 0 {
		opts.NumThreads = s.Config.NumThreads
	}
	if msg.Provider != "" {
		opts.Provider = msg.Provider
	} else if s.Config != nil && s.Config.Provider != "" {
		opts.Provider = s.Config.Provider
	}
	if msg.SampleRate > 0 {
		opts.SampleRate = msg.SampleRate
	}
	opts.Streaming = msg.Streaming
	opts.Language = msg.Language
	opts.HotwordsFile = msg.HotwordsFile
	if msg.HotwordsScore > 0 {
		opts.HotwordsScore = msg.HotwordsScore
	}
	return opts
}
