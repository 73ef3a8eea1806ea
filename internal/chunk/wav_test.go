package chunk

import (
	"math"
	"testing"
	"time"
)

// sinePCM16 generates count mono PCM16 samples of a test tone.
func sinePCM16(count, sampleRate int) []byte {
	out := make([]byte, count*2)
	for i := 0; i < count; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func TestEncodeWAV_RoundTrip(t *testing.T) {
	const sampleRate = 16000
	pcm := sinePCM16(sampleRate/2, sampleRate) // half a second

	data, err := EncodeWAV(pcm, sampleRate, 1)
	if err != nil {
		t.Fatalf("Expected encode to succeed, got: %v", err)
	}

	samples, gotRate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("Expected decode to succeed, got: %v", err)
	}
	if gotRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, gotRate)
	}
	if len(samples) != len(pcm)/2 {
		t.Errorf("Expected %d samples, got %d", len(pcm)/2, len(samples))
	}

	// Spot-check a few samples survive the container unchanged.
	for _, i := range []int{0, 100, len(samples) - 1} {
		want := int(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		if samples[i] != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, samples[i])
		}
	}
}

func TestEncodeWAV_EmptyPayload(t *testing.T) {
	data, err := EncodeWAV(nil, 16000, 1)
	if err != nil {
		t.Fatalf("Expected empty payload to encode, got: %v", err)
	}

	samples, _, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("Expected empty WAV to decode, got: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("Expected 0 samples, got %d", len(samples))
	}
}

func TestEncodeWAV_Invalid(t *testing.T) {
	if _, err := EncodeWAV([]byte{1, 2, 3}, 16000, 1); err == nil {
		t.Error("Expected error for odd byte count")
	}
	if _, err := EncodeWAV(nil, 0, 1); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := EncodeWAV(nil, 16000, 0); err == nil {
		t.Error("Expected error for zero channels")
	}
}

func TestDecodeWAV_Garbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav file")); err == nil {
		t.Error("Expected error for non-WAV payload")
	}
}

func TestPCMDurationSeconds(t *testing.T) {
	// One second of 16kHz mono PCM16 is 32000 bytes.
	if got := PCMDurationSeconds(32000, 16000, 1); got != 1.0 {
		t.Errorf("Expected 1.0s, got %f", got)
	}
	if got := PCMDurationSeconds(32000, 0, 1); got != 0 {
		t.Errorf("Expected 0 for invalid rate, got %f", got)
	}
}

func TestNewChunk(t *testing.T) {
	started := time.Now()
	c := New("sess-1", 3, []byte{1, 2, 3, 4}, 2*time.Second, started, 16000, 1)

	if c.ID == "" {
		t.Error("Expected a generated chunk ID")
	}
	if c.Sequence != 3 || c.SessionID != "sess-1" {
		t.Errorf("Unexpected identity fields: seq=%d session=%s", c.Sequence, c.SessionID)
	}
	if c.Size() != 4 {
		t.Errorf("Expected size 4, got %d", c.Size())
	}
	if c.Format != "wav" {
		t.Errorf("Expected wav format, got %s", c.Format)
	}
}
