package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/andratama/lisan/pkg/errorsx"
	"github.com/andratama/lisan/pkg/frames"
)

// wavHeader is the canonical 44-byte RIFF header written ahead of PCM data.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // payload bytes
}

const wavHeaderSize = 44

// EncodeWAV wraps mono PCM16 samples in a RIFF container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, errorsx.Wrap(fmt.Errorf("%w: empty sample buffer", errorsx.ErrFormat), errorsx.ReasonFormatDecode)
	}
	if sampleRate <= 0 {
		return nil, errorsx.Wrap(fmt.Errorf("%w: sample rate %d", errorsx.ErrFormat, sampleRate), errorsx.ReasonFormatDecode)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonFormatDecode)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonFormatDecode)
	}
	return buf.Bytes(), nil
}

// EncodeWAVFrame wraps a canonical frame's payload in a RIFF container using
// the frame's declared format.
func EncodeWAVFrame(frame frames.AudioFrame) ([]byte, error) {
	return EncodeWAV(BytesToSamples(frame.RawPayload()), frame.Format().SampleRate)
}

// StripWAV validates a RIFF container and returns the raw PCM payload along
// with the format declared by its header. Only uncompressed PCM at 8 or 16
// bits, mono or stereo, is accepted.
func StripWAV(data []byte) ([]byte, frames.PCMFormat, error) {
	if len(data) < wavHeaderSize {
		return nil, frames.PCMFormat{}, fmt.Errorf("wav payload too short: %d bytes", len(data))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, frames.PCMFormat{}, fmt.Errorf("read wav header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, frames.PCMFormat{}, fmt.Errorf("not a RIFF/WAVE container")
	}
	if string(header.Subchunk1ID[:]) != "fmt " || string(header.Subchunk2ID[:]) != "data" {
		return nil, frames.PCMFormat{}, fmt.Errorf("missing fmt or data chunk")
	}
	if header.AudioFormat != 1 {
		return nil, frames.PCMFormat{}, fmt.Errorf("compressed wav (format %d) not supported", header.AudioFormat)
	}
	if header.BitsPerSample != 8 && header.BitsPerSample != 16 {
		return nil, frames.PCMFormat{}, fmt.Errorf("unsupported bit depth %d", header.BitsPerSample)
	}
	if header.NumChannels != 1 && header.NumChannels != 2 {
		return nil, frames.PCMFormat{}, fmt.Errorf("unsupported channel count %d", header.NumChannels)
	}

	payload := data[wavHeaderSize:]
	if int(header.Subchunk2Size) < len(payload) {
		payload = payload[:header.Subchunk2Size]
	}

	encoding := frames.EncodingPCM16
	if header.BitsPerSample == 8 {
		encoding = frames.EncodingPCM8
	}
	return payload, frames.PCMFormat{
		SampleRate:    int(header.SampleRate),
		Channels:      int(header.NumChannels),
		BitsPerSample: int(header.BitsPerSample),
		Encoding:      encoding,
	}, nil
}
