package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Encoded is a self-contained audio payload and its mime type.
type Encoded struct {
	Data     []byte
	MimeType string
}

// MergePolicy decides what happens when a chunk fails to decode.
type MergePolicy string

const (
	// MergeStrict fails the whole merge on the first undecodable chunk.
	MergeStrict MergePolicy = "strict"
	// MergeLenient drops undecodable chunks and lists them in MergeReport.Skipped.
	MergeLenient MergePolicy = "lenient"
)

// ParseMergePolicy maps a config value to a policy; empty means strict.
func ParseMergePolicy(v string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(v))) {
	case "", MergeStrict:
		return MergeStrict, nil
	case MergeLenient:
		return MergeLenient, nil
	default:
		return "", fmt.Errorf("invalid merge policy %q (expected strict|lenient)", v)
	}
}

var ErrNothingToMerge = errors.New("no audio chunks to merge")

// MergeReport describes the assembled output.
type MergeReport struct {
	Inputs     int
	Skipped    []int
	SampleRate int
	Channels   int
	Frames     int
	// Passthrough is set when a single input was returned without re-encoding.
	Passthrough bool
}

// Merge concatenates chunks in order into one WAV. The first decoded chunk's
// sample rate and channel count are adopted for the output; no resampling or
// remixing is done. Chunks with fewer channels contribute silence to the
// missing ones and extra channels are dropped.
func Merge(ctx context.Context, chunks []Encoded, policy MergePolicy) (Encoded, MergeReport, error) {
	report := MergeReport{Inputs: len(chunks)}
	switch len(chunks) {
	case 0:
		return Encoded{}, report, ErrNothingToMerge
	case 1:
		report.Passthrough = true
		return chunks[0], report, nil
	}

	decoded := make([]Buffer, 0, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return Encoded{}, report, err
		}
		buf, err := DecodeToSamples(c.Data)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				err = de.Err
			}
			if policy != MergeLenient {
				return Encoded{}, report, &DecodeError{Index: i, Err: err}
			}
			report.Skipped = append(report.Skipped, i)
			continue
		}
		decoded = append(decoded, buf)
	}
	if len(decoded) == 0 {
		return Encoded{}, report, fmt.Errorf("%w: all %d chunks failed to decode", ErrNothingToMerge, len(chunks))
	}

	first := decoded[0]
	report.SampleRate = first.SampleRate
	report.Channels = first.NumChannels()
	for _, b := range decoded {
		report.Frames += b.Len()
	}

	out := make([][]float32, report.Channels)
	for c := range out {
		out[c] = make([]float32, report.Frames)
	}
	offset := 0
	for _, b := range decoded {
		if err := ctx.Err(); err != nil {
			return Encoded{}, report, err
		}
		for c := 0; c < report.Channels && c < b.NumChannels(); c++ {
			copy(out[c][offset:], b.Channels[c])
		}
		offset += b.Len()
	}

	wav, err := EncodeWAV(out, report.SampleRate)
	if err != nil {
		return Encoded{}, report, err
	}
	return Encoded{Data: wav, MimeType: FormatWAV.MimeType()}, report, nil
}
