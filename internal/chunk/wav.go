package chunk

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const pcm16BitDepth = 16

// EncodeWAV wraps little-endian PCM16 bytes in a WAV container. An
// empty input produces a valid zero-length WAV so final partial chunks
// are always playable.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("PCM16 data length must be even, got %d bytes", len(pcm))
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
	}

	buf := &seekableBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, pcm16BitDepth, channels, 1)

	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: pcm16BitDepth,
	}

	if err := enc.Write(intBuf); err != nil {
		return nil, fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize WAV container: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV extracts PCM samples and the sample rate from a WAV
// payload. Used by tests and the manifest duration check.
func DecodeWAV(data []byte) ([]int, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV payload")
	}

	pcmBuf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV payload: %w", err)
	}

	return pcmBuf.Data, int(dec.SampleRate), nil
}

// PCMDuration reports the wall-clock duration represented by a raw
// PCM16 byte count at the given rate.
func PCMDurationSeconds(pcmBytes, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(pcmBytes/2) / float64(sampleRate*channels)
}

// seekableBuffer adapts an in-memory buffer to the io.WriteSeeker the
// WAV encoder needs for header rewrites.
type seekableBuffer struct {
	data []byte
	pos  int
}

func (b *seekableBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position: %d", next)
	}
	b.pos = int(next)
	return next, nil
}

func (b *seekableBuffer) Bytes() []byte {
	return b.data
}
