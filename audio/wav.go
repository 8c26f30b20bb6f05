package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// WAVWriter потоковый писатель WAV (PCM16) с дозаписью заголовка
type WAVWriter struct {
	file           *os.File
	filePath       string
	sampleRate     int
	channels       int
	bitsPerSample  int
	samplesWritten int64
	mu             sync.Mutex
}

// NewWAVWriter создаёт WAV файл и пишет placeholder заголовок
func NewWAVWriter(filePath string, sampleRate, channels int) (*WAVWriter, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}

	w := &WAVWriter{
		file:          file,
		filePath:      filePath,
		sampleRate:    sampleRate,
		channels:      channels,
		bitsPerSample: 16,
	}
	if err := w.writeHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *WAVWriter) writeHeader() error {
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	byteRate := w.sampleRate * w.channels * w.bitsPerSample / 8
	blockAlign := w.channels * w.bitsPerSample / 8
	dataSize := uint32(w.samplesWritten * int64(w.bitsPerSample/8))

	w.file.WriteString("RIFF")
	binary.Write(w.file, binary.LittleEndian, uint32(36+dataSize))
	w.file.WriteString("WAVE")

	w.file.WriteString("fmt ")
	binary.Write(w.file, binary.LittleEndian, uint32(16))
	binary.Write(w.file, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(w.file, binary.LittleEndian, uint16(w.channels))
	binary.Write(w.file, binary.LittleEndian, uint32(w.sampleRate))
	binary.Write(w.file, binary.LittleEndian, uint32(byteRate))
	binary.Write(w.file, binary.LittleEndian, uint16(blockAlign))
	binary.Write(w.file, binary.LittleEndian, uint16(w.bitsPerSample))

	w.file.WriteString("data")
	return binary.Write(w.file, binary.LittleEndian, dataSize)
}

// Write пишет float32 сэмплы, конвертируя в PCM16 с клиппингом
func (w *WAVWriter) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
	}
	if _, err := w.file.Write(buf); err != nil {
		return err
	}
	w.samplesWritten += int64(len(samples))
	return nil
}

// SamplesWritten количество записанных сэмплов
func (w *WAVWriter) SamplesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samplesWritten
}

// FilePath путь к файлу
func (w *WAVWriter) FilePath() string {
	return w.filePath
}

// Close дописывает заголовок с фактическим размером и закрывает файл
func (w *WAVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeHeader(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// ReadWAV читает WAV файл целиком: float32 моно и частота дискретизации.
// Поддерживается PCM16; многоканальный звук сводится усреднением.
func ReadWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return nil, 0, fmt.Errorf("failed to read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a wav file: %s", path)
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		data          []byte
	)

	// Идём по чанкам: fmt до data, незнакомые пропускаем
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, 0, fmt.Errorf("failed to read chunk header: %w", err)
		}
		chunkID := string(hdr[0:4])
		chunkSize := binary.LittleEndian.Uint32(hdr[4:8])

		switch chunkID {
		case "fmt ":
			fmtData := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, fmtData); err != nil {
				return nil, 0, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			format := binary.LittleEndian.Uint16(fmtData[0:2])
			if format != 1 {
				return nil, 0, fmt.Errorf("unsupported wav format %d, want PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
		case "data":
			data = make([]byte, chunkSize)
			if _, err := io.ReadFull(f, data); err != nil {
				return nil, 0, fmt.Errorf("failed to read data chunk: %w", err)
			}
		default:
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, 0, err
			}
		}
		if data != nil && sampleRate != 0 {
			break
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, 0, fmt.Errorf("wav file has no fmt chunk: %s", path)
	}
	if data == nil {
		return nil, 0, fmt.Errorf("wav file has no data chunk: %s", path)
	}
	if bitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bits per sample %d, want 16", bitsPerSample)
	}

	frameCount := len(data) / (2 * channels)
	mono := make([]float32, frameCount)
	for i := 0; i < frameCount; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(data[off:]))) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono, sampleRate, nil
}
