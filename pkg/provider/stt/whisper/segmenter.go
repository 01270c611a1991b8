package whisper

// defaultRMSThreshold is the amplitude below which a chunk counts as
// silence. 300 of 32767 is close to the noise floor of a laptop microphone.
const defaultRMSThreshold = 300.0

// segmenter turns a stream of PCM chunks into utterances using trailing
// silence as the sentence boundary. Leading silence is discarded and an
// utterance that grows past maxBytes is cut without waiting for silence.
//
// A segmenter is not safe for concurrent use; each stream's process loop
// owns one.
type segmenter struct {
	sampleRate int
	channels   int
	silenceMs  int
	maxBytes   int
	threshold  float64

	buf       []byte
	hadSpeech bool
	silence   int
}

func newSegmenter(sampleRate, channels, silenceMs, maxBufferMs int) *segmenter {
	bytesPerMs := sampleRate * channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32 // 16 kHz mono
	}
	return &segmenter{
		sampleRate: sampleRate,
		channels:   channels,
		silenceMs:  silenceMs,
		maxBytes:   maxBufferMs * bytesPerMs,
		threshold:  defaultRMSThreshold,
	}
}

// push adds a chunk and returns a completed utterance, or nil.
func (s *segmenter) push(chunk []byte) []byte {
	if computeRMS(chunk) < s.threshold {
		if !s.hadSpeech {
			return nil
		}
		s.silence += chunkDurationMs(chunk, s.sampleRate, s.channels)
		s.buf = append(s.buf, chunk...)
		if s.silence >= s.silenceMs {
			return s.flush()
		}
		return nil
	}

	s.hadSpeech = true
	s.silence = 0
	s.buf = append(s.buf, chunk...)
	if s.maxBytes > 0 && len(s.buf) >= s.maxBytes {
		return s.flush()
	}
	return nil
}

// flush returns the pending utterance, or nil if it holds no speech, and
// resets the segmenter.
func (s *segmenter) flush() []byte {
	pcm := s.buf
	speech := s.hadSpeech
	s.buf = nil
	s.hadSpeech = false
	s.silence = 0
	if !speech || len(pcm) == 0 {
		return nil
	}
	return pcm
}
