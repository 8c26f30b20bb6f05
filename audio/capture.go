// Package audio содержит ввод-вывод звука: захват микрофона,
// чтение и запись WAV/MP3, ресемплинг.
package audio

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// Device аудиоустройство захвата
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Capture захват микрофона для потокового распознавания.
// Отдаёт float32 моно с заданной частотой через канал Data.
type Capture struct {
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	deviceID *malgo.DeviceID

	sampleRate int
	dataChan   chan []float32

	mu      sync.Mutex
	running bool
}

// NewCapture создаёт захват с частотой дискретизации модели
func NewCapture(sampleRate int) (*Capture, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}
	return &Capture{
		ctx:        ctx,
		sampleRate: sampleRate,
		// Большой буфер, чтобы не терять кадры при медленном декодере
		dataChan: make(chan []float32, 256),
	}, nil
}

// ListDevices перечисляет устройства захвата
func (c *Capture) ListDevices() ([]Device, error) {
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	devices := make([]Device, 0, len(infos))
	for _, dev := range infos {
		devices = append(devices, Device{
			ID:   deviceIDToString(dev.ID),
			Name: dev.Name(),
		})
	}
	return devices, nil
}

// SetDevice выбирает устройство по идентификатору; пустая строка
// или "default" — устройство по умолчанию
func (c *Capture) SetDevice(deviceID string) error {
	if deviceID == "" || deviceID == "default" {
		c.deviceID = nil
		return nil
	}
	id, err := stringToDeviceID(deviceID)
	if err != nil {
		return err
	}
	c.deviceID = id
	return nil
}

// SetDeviceByName выбирает устройство по части имени
func (c *Capture) SetDeviceByName(name string) error {
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return err
	}
	nameLower := strings.ToLower(name)
	for _, dev := range infos {
		if strings.Contains(strings.ToLower(dev.Name()), nameLower) {
			id := dev.ID
			c.deviceID = &id
			return nil
		}
	}
	return fmt.Errorf("capture device not found: %s", name)
}

// Start запускает захват
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("capture already running")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if c.deviceID != nil {
		deviceConfig.Capture.DeviceID = c.deviceID.Pointer()
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		sampleCount := int(framecount)
		if len(pInputSamples) != sampleCount*4 {
			return
		}
		samples := make([]float32, sampleCount)
		for i := 0; i < sampleCount; i++ {
			bits := uint32(pInputSamples[i*4]) |
				uint32(pInputSamples[i*4+1])<<8 |
				uint32(pInputSamples[i*4+2])<<16 |
				uint32(pInputSamples[i*4+3])<<24
			samples[i] = math.Float32frombits(bits)
		}
		// Блокируемся при полном буфере: кадры дороже задержки
		c.dataChan <- samples
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return fmt.Errorf("failed to init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.device = device
	c.running = true
	log.Printf("Capture: started (rate=%d)", c.sampleRate)
	return nil
}

// Data канал захваченных кадров
func (c *Capture) Data() <-chan []float32 {
	return c.dataChan
}

// ClearBuffer выбрасывает накопленные кадры перед новой сессией
func (c *Capture) ClearBuffer() {
	for {
		select {
		case <-c.dataChan:
		default:
			return
		}
	}
}

// Stop останавливает захват. Повторный вызов безопасен.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.running = false
	log.Printf("Capture: stopped")
}

// Close освобождает ресурсы
func (c *Capture) Close() {
	c.Stop()
	if c.ctx != nil {
		c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

func deviceIDToString(id malgo.DeviceID) string {
	var b strings.Builder
	for _, ch := range id[:32] {
		if ch == 0 {
			break
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func stringToDeviceID(s string) (*malgo.DeviceID, error) {
	if len(s) > 32 {
		return nil, fmt.Errorf("device id too long")
	}
	var id malgo.DeviceID
	copy(id[:], s)
	return &id, nil
}
