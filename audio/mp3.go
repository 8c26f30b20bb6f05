package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
	gomp3 "github.com/hajimehoshi/go-mp3"
)

// ReadMP3 читает MP3 файл целиком: float32 моно и частота дискретизации.
// go-mp3 декодирует в стерео PCM16; каналы сводятся усреднением.
func ReadMP3(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open mp3 file: %w", err)
	}
	defer f.Close()

	decoder, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm := make([]byte, decoder.Length())
	n, err := io.ReadFull(decoder, pcm)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, 0, fmt.Errorf("failed to read pcm data: %w", err)
	}
	pcm = pcm[:n]

	// 16-bit stereo interleaved: 4 байта на фрейм
	frames := n / 4
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		mono[i] = (float32(left) + float32(right)) / 2 / 32768.0
	}
	return mono, decoder.SampleRate(), nil
}

// MP3Writer потоковый писатель MP3 через shine (чистый Go).
// Кодек работает блоками по 1152 сэмпла на канал, поэтому сэмплы
// накапливаются и пишутся кратными блоку порциями.
type MP3Writer struct {
	file       *os.File
	encoder    *shine.Encoder
	filePath   string
	sampleRate int
	channels   int

	buffer         []int16
	samplesWritten int64

	mu     sync.Mutex
	closed bool
}

// NewMP3Writer создаёт MP3 файл
func NewMP3Writer(filePath string, sampleRate, channels int) (*MP3Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 file: %w", err)
	}
	return &MP3Writer{
		file:       file,
		encoder:    shine.NewEncoder(sampleRate, channels),
		filePath:   filePath,
		sampleRate: sampleRate,
		channels:   channels,
		buffer:     make([]int16, 0, 8192),
	}, nil
}

// Write пишет float32 сэмплы, конвертируя в PCM16 с клиппингом
func (w *MP3Writer) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("mp3 writer is closed")
	}

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		w.buffer = append(w.buffer, int16(s*32767))
	}
	w.samplesWritten += int64(len(samples))

	// Пишем по 4 блока за раз, остаток копим дальше
	minBuffered := 1152 * w.channels * 4
	if len(w.buffer) >= minBuffered {
		writable := len(w.buffer) - len(w.buffer)%(1152*w.channels)
		w.encoder.Write(w.file, w.buffer[:writable])
		w.buffer = append(w.buffer[:0], w.buffer[writable:]...)
	}
	return nil
}

// SamplesWritten количество принятых сэмплов
func (w *MP3Writer) SamplesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samplesWritten
}

// FilePath путь к файлу
func (w *MP3Writer) FilePath() string {
	return w.filePath
}

// Close дожимает остаток буфера (с дополнением до блока) и закрывает файл
func (w *MP3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.buffer) > 0 {
		blockSize := 1152 * w.channels
		for len(w.buffer)%blockSize != 0 {
			w.buffer = append(w.buffer, 0)
		}
		w.encoder.Write(w.file, w.buffer)
		w.buffer = nil
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close mp3 file: %w", err)
	}
	log.Printf("MP3Writer: closed %s (%d samples)", w.filePath, w.samplesWritten)
	return nil
}
