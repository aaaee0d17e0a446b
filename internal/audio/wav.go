package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
	formatPCM     = 1
)

// DefaultPCMSampleRate is the rate Gemini returns raw L16 audio at.
const DefaultPCMSampleRate = 24000

var ErrInvalidSamples = errors.New("invalid sample buffer")

// EncodeWAV encodes per-channel float samples in [-1, 1] as a canonical
// 44-byte-header PCM16LE WAV. Every channel must have the same length.
func EncodeWAV(samples [][]float32, sampleRate int) ([]byte, error) {
	channels := len(samples)
	if channels == 0 || sampleRate <= 0 {
		return nil, ErrInvalidSamples
	}
	frames := len(samples[0])
	for _, ch := range samples[1:] {
		if len(ch) != frames {
			return nil, ErrInvalidSamples
		}
	}

	dataSize := frames * channels * 2
	out := make([]byte, wavHeaderSize+dataSize)
	putHeader(out, channels, sampleRate, uint32(dataSize))

	off := wavHeaderSize
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(out[off:], uint16(floatToPCM16(samples[c][i])))
			off += 2
		}
	}
	return out, nil
}

// floatToPCM16 clamps to [-1, 1] and scales negatives by 32768 and
// non-negatives by 32767.
func floatToPCM16(v float32) int16 {
	f := float64(v)
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	if f < 0 {
		return int16(math.Round(f * 32768))
	}
	return int16(math.Round(f * 32767))
}

func pcm16ToFloat(v int16) float32 {
	if v < 0 {
		return float32(float64(v) / 32768)
	}
	return float32(float64(v) / 32767)
}

// EncodeWAVPCM16LE wraps raw PCM16LE mono audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LETo writes raw PCM16LE mono audio bytes to out as a WAV stream.
// The samples are copied as-is.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = DefaultPCMSampleRate
	}
	var header [wavHeaderSize]byte
	putHeader(header[:], 1, sampleRate, uint32(len(pcm)))

	w := bufio.NewWriter(out)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// PCMToWAV wraps base64 raw 16-bit mono PCM in a WAV header and returns the
// result base64 encoded.
func PCMToWAV(rawPCMBase64 string, sampleRate int) (string, error) {
	pcm, err := FromBase64(rawPCMBase64)
	if err != nil {
		return "", err
	}
	wav, err := EncodeWAVPCM16LE(pcm, sampleRate)
	if err != nil {
		return "", err
	}
	return ToBase64(wav), nil
}

func putHeader(b []byte, channels, sampleRate int, dataSize uint32) {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	// RIFF header.
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:8], 36+dataSize)
	copy(b[8:12], "WAVE")

	// fmt chunk.
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:20], 16)
	binary.LittleEndian.PutUint16(b[20:22], formatPCM)
	binary.LittleEndian.PutUint16(b[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(b[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(b[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(b[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(b[34:36], bitsPerSample)

	// data chunk.
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:44], dataSize)
}
