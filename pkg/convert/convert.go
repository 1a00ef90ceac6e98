package convert

import (
	"fmt"
	"log/slog"

	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
	"github.com/andratama/lisan/pkg/logging"
)

// Converter normalizes arbitrary capture formats to the canonical transport
// format (mono 16-bit linear PCM at a fixed rate) and back. Every conversion
// is pure and deterministic for a given input and declared source format.
type Converter struct {
	canonical frames.PCMFormat
	logger    *slog.Logger
}

func New(canonical frames.PCMFormat) *Converter {
	if canonical.SampleRate == 0 {
		canonical = frames.Canonical16K
	}
	return &Converter{
		canonical: canonical,
		logger:    logging.NewComponentLogger(slog.Default(), "convert"),
	}
}

func (c *Converter) Canonical() frames.PCMFormat { return c.canonical }

// ToCanonical converts a frame declared as src into the canonical format.
// Unrecognized or corrupt input fails with a format error; the caller drops
// the frame and the pipeline continues.
func (c *Converter) ToCanonical(frame frames.AudioFrame, src frames.PCMFormat) (frames.AudioFrame, error) {
	data := frame.RawPayload()

	if src.Encoding == frames.EncodingWAV {
		raw, parsed, err := StripWAV(data)
		if err != nil {
			return frames.AudioFrame{}, errorsx.Wrap(fmt.Errorf("%w: %v", errorsx.ErrFormat, err), errorsx.ReasonFormatDecode)
		}
		data = raw
		src = parsed
	}

	samples, err := decodeToLinear16(data, src)
	if err != nil {
		return frames.AudioFrame{}, err
	}

	if src.Channels == 2 {
		samples = stereoToMono(samples)
	} else if src.Channels != 1 {
		return frames.AudioFrame{}, errorsx.Wrap(
			fmt.Errorf("%w: %d channels", errorsx.ErrFormat, src.Channels),
			errorsx.ReasonFormatUnsupported)
	}

	if src.SampleRate != c.canonical.SampleRate {
		samples = Resample(samples, src.SampleRate, c.canonical.SampleRate)
	}

	return frames.NewAudioFrameAt(
		frame.Meta()[frames.MetaSessionID],
		SamplesToBytes(samples),
		c.canonical,
		frame.Direction(),
		frame.CapturedAt(),
		frame.Meta(),
	), nil
}

// FromCanonical converts a canonical frame into the requested target format.
func (c *Converter) FromCanonical(frame frames.AudioFrame, dst frames.PCMFormat) (frames.AudioFrame, error) {
	if frame.Format() != c.canonical {
		c.logger.Warn("from_canonical_on_non_canonical_frame",
			slog.Int("sample_rate", frame.Format().SampleRate),
			slog.String("encoding", string(frame.Format().Encoding)))
	}

	samples := BytesToSamples(frame.RawPayload())

	if dst.SampleRate != 0 && dst.SampleRate != frame.Format().SampleRate {
		samples = Resample(samples, frame.Format().SampleRate, dst.SampleRate)
	}

	if dst.Channels == 2 {
		samples = monoToStereo(samples)
	}

	data, err := encodeFromLinear16(samples, dst)
	if err != nil {
		return frames.AudioFrame{}, err
	}

	return frames.NewAudioFrameAt(
		frame.Meta()[frames.MetaSessionID],
		data,
		dst,
		frame.Direction(),
		frame.CapturedAt(),
		frame.Meta(),
	), nil
}

func decodeToLinear16(data []byte, src frames.PCMFormat) ([]int16, error) {
	switch src.Encoding {
	case frames.EncodingPCM16:
		if len(data)%2 != 0 {
			return nil, errorsx.Wrap(
				fmt.Errorf("%w: odd pcm16 payload of %d bytes", errorsx.ErrFormat, len(data)),
				errorsx.ReasonFormatDecode)
		}
		return BytesToSamples(data), nil
	case frames.EncodingPCM8:
		out := make([]int16, len(data))
		for i, b := range data {
			out[i] = (int16(b) - 128) << 8
		}
		return out, nil
	case frames.EncodingALaw:
		out := make([]int16, len(data))
		for i, b := range data {
			out[i] = ALawToLinear(b)
		}
		return out, nil
	case frames.EncodingMuLaw:
		out := make([]int16, len(data))
		for i, b := range data {
			out[i] = MuLawToLinear(b)
		}
		return out, nil
	default:
		return nil, errorsx.Wrap(
			fmt.Errorf("%w: encoding %q", errorsx.ErrFormat, src.Encoding),
			errorsx.ReasonFormatUnsupported)
	}
}

func encodeFromLinear16(samples []int16, dst frames.PCMFormat) ([]byte, error) {
	switch dst.Encoding {
	case frames.EncodingPCM16:
		return SamplesToBytes(samples), nil
	case frames.EncodingPCM8:
		out := make([]byte, len(samples))
		for i, s := range samples {
			out[i] = byte((s >> 8) + 128)
		}
		return out, nil
	case frames.EncodingALaw:
		out := make([]byte, len(samples))
		for i, s := range samples {
			out[i] = LinearToALaw(s)
		}
		return out, nil
	case frames.EncodingMuLaw:
		out := make([]byte, len(samples))
		for i, s := range samples {
			out[i] = LinearToMuLaw(s)
		}
		return out, nil
	case frames.EncodingWAV:
		rate := dst.SampleRate
		return EncodeWAV(samples, rate)
	default:
		return nil, errorsx.Wrap(
			fmt.Errorf("%w: encoding %q", errorsx.ErrFormat, dst.Encoding),
			errorsx.ReasonFormatUnsupported)
	}
}

func stereoToMono(in []int16) []int16 {
	out := make([]int16, len(in)/2)
	for i := range out {
		l := int32(in[2*i])
		r := int32(in[2*i+1])
		out[i] = int16((l + r) / 2)
	}
	return out
}

func monoToStereo(in []int16) []int16 {
	out := make([]int16, len(in)*2)
	for i, s := range in {
		out[2*i] = s
		out[2*i+1] = s
	}
	return out
}

// BytesToSamples reinterprets little-endian PCM16 bytes as samples.
func BytesToSamples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return out
}

// SamplesToBytes serializes samples as little-endian PCM16.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}
