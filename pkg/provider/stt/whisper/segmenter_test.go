package whisper

import (
	"encoding/binary"
	"math"
	"testing"
)

func tone(samples int, amplitude float64) []byte {
	buf := make([]byte, samples*2)
	for i := range samples {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestSegmenter(t *testing.T) {
	t.Parallel()

	speech := tone(1600, 10_000)  // 100 ms
	silence := make([]byte, 3200) // 100 ms

	tests := []struct {
		name      string
		silenceMs int
		maxMs     int
		chunks    [][]byte
		// wantAt is the index of the chunk that completes an utterance, or -1.
		wantAt  int
		wantLen int
	}{
		{"leading silence dropped", 100, 10_000, [][]byte{silence, silence}, -1, 0},
		{"trailing silence ends utterance", 200, 10_000, [][]byte{silence, speech, silence, silence}, 3, 3 * 3200},
		{"speech resets silence", 200, 10_000, [][]byte{speech, silence, speech, silence}, -1, 0},
		{"max buffer cuts", 60_000, 200, [][]byte{speech, speech}, 1, 2 * 3200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newSegmenter(16000, 1, tt.silenceMs, tt.maxMs)
			gotAt, gotLen := -1, 0
			for i, c := range tt.chunks {
				if pcm := s.push(c); pcm != nil {
					gotAt, gotLen = i, len(pcm)
					break
				}
			}
			if gotAt != tt.wantAt || gotLen != tt.wantLen {
				t.Errorf("utterance at chunk %d with %d bytes, want chunk %d with %d bytes", gotAt, gotLen, tt.wantAt, tt.wantLen)
			}
		})
	}
}

func TestSegmenter_FlushWithoutSpeech(t *testing.T) {
	t.Parallel()

	s := newSegmenter(16000, 1, 100, 1000)
	if pcm := s.flush(); pcm != nil {
		t.Errorf("flush() on empty segmenter = %d bytes, want nil", len(pcm))
	}
	s.push(tone(160, 10_000))
	if pcm := s.flush(); len(pcm) != 320 {
		t.Errorf("flush() = %d bytes, want 320", len(pcm))
	}
	if pcm := s.flush(); pcm != nil {
		t.Error("second flush() returned data")
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()

	wav := encodeWAV(make([]byte, 100), 16000, 1)
	if len(wav) != 144 {
		t.Fatalf("len = %d, want 144", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Errorf("bad chunk ids: %q %q %q", wav[0:4], wav[8:12], wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 100 {
		t.Errorf("data size = %d, want 100", got)
	}
}

func TestPCMHelpers(t *testing.T) {
	t.Parallel()

	if got := computeRMS(nil); got != 0 {
		t.Errorf("computeRMS(nil) = %v, want 0", got)
	}
	if got := computeRMS(tone(1600, 10_000)); got < 7000 || got > 7150 {
		t.Errorf("computeRMS(tone) = %v, want about 7071", got)
	}
	if got := chunkDurationMs(make([]byte, 3200), 16000, 1); got != 100 {
		t.Errorf("chunkDurationMs = %d, want 100", got)
	}
	if got := chunkDurationMs(make([]byte, 3200), 0, 1); got != 0 {
		t.Errorf("chunkDurationMs with zero rate = %d, want 0", got)
	}

	// Stereo frame: left = full scale positive, right = zero.
	stereo := make([]byte, 4)
	binary.LittleEndian.PutUint16(stereo[0:], uint16(int16(16384)))
	mono := pcmToFloat32Mono(stereo, 2)
	if len(mono) != 1 || mono[0] != 0.25 {
		t.Errorf("pcmToFloat32Mono(stereo) = %v, want [0.25]", mono)
	}
	if got := pcmToFloat32Mono([]byte{0, 0, 1}, 0); len(got) != 1 {
		t.Errorf("pcmToFloat32Mono odd length = %d samples, want 1", len(got))
	}
}
