package whisper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

// finalFlushTimeout bounds the inference of the last utterance when a
// stream closes.
const finalFlushTimeout = 30 * time.Second

// inferFunc transcribes one complete utterance.
type inferFunc func(ctx context.Context, pcm []byte) (string, error)

// stream is the stt.SessionHandle shared by the HTTP and native providers.
// Audio is segmented on a single goroutine and each utterance is passed to
// infer; the backends differ only in that function.
type stream struct {
	name  string
	infer inferFunc
	seg   *segmenter

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	started time.Time
	elapsed time.Duration
}

func startStream(ctx context.Context, name string, seg *segmenter, infer inferFunc) *stream {
	s := &stream{
		name:     name,
		infer:    infer,
		seg:      seg,
		audioCh:  make(chan []byte, 256),
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		done:     make(chan struct{}),
		started:  time.Now(),
	}
	s.wg.Add(1)
	go s.processLoop(ctx)
	return s
}

// SendAudio queues a PCM16 chunk. It never blocks: a full queue drops the
// chunk and returns stt.ErrAudioOverflow.
func (s *stream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stt.ErrSessionClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	default:
		return stt.ErrAudioOverflow
	}
}

// Partials carries the same text as Finals, emitted just before it; whisper
// has no interim hypotheses.
func (s *stream) Partials() <-chan stt.Transcript { return s.partials }

func (s *stream) Finals() <-chan stt.Transcript { return s.finals }

// Close flushes pending speech for a last transcription, closes both
// channels and waits for the process loop. It is idempotent.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *stream) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	finish := func() {
		fc, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
		defer cancel()
		s.emit(fc, s.seg.flush())
	}

	for {
		select {
		case <-ctx.Done():
			finish()
			return
		case <-s.done:
			finish()
			return
		case chunk := <-s.audioCh:
			s.elapsed += time.Duration(chunkDurationMs(chunk, s.seg.sampleRate, s.seg.channels)) * time.Millisecond
			if pcm := s.seg.push(chunk); pcm != nil {
				s.emit(ctx, pcm)
			}
		}
	}
}

func (s *stream) emit(ctx context.Context, pcm []byte) {
	if pcm == nil {
		return
	}
	text, err := s.infer(ctx, pcm)
	if err != nil {
		slog.Error("whisper inference failed", "backend", s.name, "err", err)
		return
	}
	if text == "" {
		return
	}
	dur := time.Duration(chunkDurationMs(pcm, s.seg.sampleRate, s.seg.channels)) * time.Millisecond
	t := stt.Transcript{Text: text, Timestamp: s.elapsed - dur, Duration: dur}

	// Channels are buffered; a consumer that falls this far behind loses
	// transcripts rather than stalling segmentation.
	select {
	case s.partials <- t:
	default:
	}
	t.IsFinal = true
	select {
	case s.finals <- t:
	default:
		slog.Warn("whisper final transcript dropped", "backend", s.name)
	}
}

var _ stt.SessionHandle = (*stream)(nil)
