package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Format is a detected container/codec.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatUnknown Format = "unknown"
)

const (
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrTruncated         = errors.New("truncated audio data")
)

// DecodeError reports a chunk that could not be decoded. Index is -1 when
// the failure is not tied to a position in a merge.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("decode audio: %v", e.Err)
	}
	return fmt.Sprintf("decode audio chunk %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Buffer is decoded audio: one float slice per channel, all the same length.
type Buffer struct {
	Channels   [][]float32
	SampleRate int
}

func (b Buffer) NumChannels() int { return len(b.Channels) }

// Len returns the number of sample frames.
func (b Buffer) Len() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Len()) / float64(b.SampleRate) * float64(time.Second))
}

// DetectFormat sniffs the container from leading bytes.
func DetectFormat(data []byte) Format {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// MimeType returns the mime type clips carry for f.
func (f Format) MimeType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mp3"
	default:
		return "application/octet-stream"
	}
}

// DecodeToSamples decodes WAV or MP3 bytes into per-channel float samples.
func DecodeToSamples(data []byte) (Buffer, error) {
	var (
		buf Buffer
		err error
	)
	switch DetectFormat(data) {
	case FormatWAV:
		buf, err = decodeWAV(data)
	case FormatMP3:
		buf, err = decodeMP3(data)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return Buffer{}, &DecodeError{Index: -1, Err: err}
	}
	return buf, nil
}

type wavFormat struct {
	audioFormat   uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

func decodeWAV(data []byte) (Buffer, error) {
	var (
		fmtChunk *wavFormat
		pcm      []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Streaming writers leave a placeholder size on the last chunk.
			end = len(data)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return Buffer{}, ErrTruncated
			}
			f := &wavFormat{
				audioFormat:   binary.LittleEndian.Uint16(data[body:]),
				channels:      int(binary.LittleEndian.Uint16(data[body+2:])),
				sampleRate:    int(binary.LittleEndian.Uint32(data[body+4:])),
				bitsPerSample: int(binary.LittleEndian.Uint16(data[body+14:])),
			}
			if f.audioFormat == formatExtensible && end-body >= 26 {
				f.audioFormat = binary.LittleEndian.Uint16(data[body+24:])
			}
			fmtChunk = f
		case "data":
			pcm = data[body:end]
		}
		// Chunks are word aligned.
		off = end + (end-body)%2
		if pcm != nil && fmtChunk != nil {
			break
		}
	}
	if fmtChunk == nil || pcm == nil {
		return Buffer{}, ErrTruncated
	}
	if fmtChunk.channels <= 0 || fmtChunk.sampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, fmtChunk.channels, fmtChunk.sampleRate)
	}

	read, err := sampleReader(fmtChunk.audioFormat, fmtChunk.bitsPerSample)
	if err != nil {
		return Buffer{}, err
	}
	width := fmtChunk.bitsPerSample / 8
	frameSize := width * fmtChunk.channels
	frames := len(pcm) / frameSize

	channels := make([][]float32, fmtChunk.channels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * frameSize
		for c := 0; c < fmtChunk.channels; c++ {
			channels[c][i] = read(pcm[base+c*width:])
		}
	}
	return Buffer{Channels: channels, SampleRate: fmtChunk.sampleRate}, nil
}

func sampleReader(audioFormat uint16, bits int) (func([]byte) float32, error) {
	switch {
	case audioFormat == formatPCM && bits == 16:
		return func(b []byte) float32 { return pcm16ToFloat(int16(binary.LittleEndian.Uint16(b))) }, nil
	case audioFormat == formatPCM && bits == 8:
		return func(b []byte) float32 { return float32(int(b[0])-128) / 128 }, nil
	case audioFormat == formatPCM && bits == 24:
		return func(b []byte) float32 {
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			return float32(v) / (1 << 23)
		}, nil
	case audioFormat == formatPCM && bits == 32:
		return func(b []byte) float32 { return float32(int32(binary.LittleEndian.Uint32(b))) / (1 << 31) }, nil
	case audioFormat == formatIEEEFloat && bits == 32:
		return func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }, nil
	default:
		return nil, fmt.Errorf("%w: format %d with %d bits", ErrUnsupportedFormat, audioFormat, bits)
	}
}

// decodeMP3 always yields two channels; go-mp3 upmixes mono streams.
func decodeMP3(data []byte) (Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Buffer{}, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return Buffer{}, err
	}
	frames := len(pcm) / 4
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = pcm16ToFloat(int16(binary.LittleEndian.Uint16(pcm[i*4:])))
		right[i] = pcm16ToFloat(int16(binary.LittleEndian.Uint16(pcm[i*4+2:])))
	}
	return Buffer{Channels: [][]float32{left, right}, SampleRate: dec.SampleRate()}, nil
}
