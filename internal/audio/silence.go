// Package audio inspects uploaded PCM WAV clips so near-silent input can be
// answered without occupying an engine slot.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

type Metrics struct {
	SampleRate int
	Channels   int
	Duration   time.Duration
	RMSdBFS    float64
	PeakdBFS   float64
	Samples    int64
}

// IsSilent reports whether a WAV clip stays below thresholdDBFS. The peak may
// exceed the threshold by 6 dB to tolerate clicks.
func IsSilent(data []byte, thresholdDBFS float64) (bool, Metrics, error) {
	metrics, err := Analyze(data)
	if err != nil {
		return false, Metrics{}, err
	}

	if metrics.Samples == 0 {
		return true, metrics, nil
	}
	if math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics, nil
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics, nil
}

// LooksLikeWAV checks the RIFF/WAVE magic only.
func LooksLikeWAV(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

type wavFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// Analyze walks the RIFF chunks of an in-memory WAV clip and measures its
// level.
func Analyze(data []byte) (Metrics, error) {
	if !LooksLikeWAV(data) {
		return Metrics{}, ErrInvalidWAV
	}

	r := bytes.NewReader(data[12:])
	var (
		format  wavFormat
		samples []byte
		hasFmt  bool
		hasData bool
	)

	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Metrics{}, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(header[:4])
		chunkSize := int64(binary.LittleEndian.Uint32(header[4:8]))
		padded := chunkSize + chunkSize%2

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Metrics{}, ErrInvalidWAV
			}
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Metrics{}, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidWAV)
			}
			format = wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(buf[0:2]),
				channels:      binary.LittleEndian.Uint16(buf[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(buf[4:8]),
				bitsPerSample: binary.LittleEndian.Uint16(buf[14:16]),
			}
			hasFmt = true
			if _, err := r.Seek(padded-chunkSize, io.SeekCurrent); err != nil {
				return Metrics{}, fmt.Errorf("seek wav fmt padding: %w", err)
			}
		case "data":
			size := chunkSize
			if remaining := int64(r.Len()); size > remaining {
				size = remaining
			}
			samples = make([]byte, size)
			if _, err := io.ReadFull(r, samples); err != nil {
				return Metrics{}, fmt.Errorf("read wav data: %w", err)
			}
			hasData = true
			if _, err := r.Seek(padded-size, io.SeekCurrent); err != nil {
				return Metrics{}, fmt.Errorf("seek wav data padding: %w", err)
			}
		default:
			if _, err := r.Seek(padded, io.SeekCurrent); err != nil {
				return Metrics{}, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return Metrics{}, ErrInvalidWAV
	}
	if err := validateFormat(format.audioFormat, format.bitsPerSample); err != nil {
		return Metrics{}, err
	}

	peak, sumSquares, count, err := measureSamples(samples, format.audioFormat, format.bitsPerSample)
	if err != nil {
		return Metrics{}, err
	}

	metrics := Metrics{
		SampleRate: int(format.sampleRate),
		Channels:   int(format.channels),
		Samples:    count,
		RMSdBFS:    math.Inf(-1),
		PeakdBFS:   math.Inf(-1),
	}
	if format.sampleRate > 0 && format.channels > 0 {
		frames := count / int64(format.channels)
		metrics.Duration = time.Duration(frames) * time.Second / time.Duration(format.sampleRate)
	}
	if count > 0 {
		metrics.RMSdBFS = amplitudeToDBFS(math.Sqrt(sumSquares / float64(count)))
		metrics.PeakdBFS = amplitudeToDBFS(peak)
	}
	return metrics, nil
}

func validateFormat(audioFormat, bitsPerSample uint16) error {
	switch audioFormat {
	case 1:
		switch bitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case 3:
		switch bitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return ErrUnsupportedWAV
}

func measureSamples(data []byte, audioFormat, bitsPerSample uint16) (float64, float64, int64, error) {
	bytesPerSample := int(bitsPerSample / 8)
	if bytesPerSample <= 0 {
		return 0, 0, 0, ErrUnsupportedWAV
	}

	var peak, sumSquares float64
	var samples int64
	for i := 0; i+bytesPerSample <= len(data); i += bytesPerSample {
		value, err := decodeSample(data[i:i+bytesPerSample], audioFormat, bitsPerSample)
		if err != nil {
			return 0, 0, 0, err
		}

		peak = math.Max(peak, math.Abs(value))
		sumSquares += value * value
		samples++
	}

	return peak, sumSquares, samples, nil
}

func decodeSample(sample []byte, audioFormat, bitsPerSample uint16) (float64, error) {
	if audioFormat == 3 {
		switch bitsPerSample {
		case 32:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(sample))), nil
		case 64:
			return math.Float64frombits(binary.LittleEndian.Uint64(sample)), nil
		default:
			return 0, ErrUnsupportedWAV
		}
	}

	switch bitsPerSample {
	case 8:
		return (float64(sample[0]) - 128.0) / 128.0, nil
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(sample))) / 32768.0, nil
	case 24:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608.0, nil
	case 32:
		return float64(int32(binary.LittleEndian.Uint32(sample))) / 2147483648.0, nil
	default:
		return 0, ErrUnsupportedWAV
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
