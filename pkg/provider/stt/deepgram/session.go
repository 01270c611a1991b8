package deepgram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

var (
	msgCloseStream = []byte(`{"type":"CloseStream"}`)
	msgKeepAlive   = []byte(`{"type":"KeepAlive"}`)
)

// session implements stt.SessionHandle for one websocket stream.
type session struct {
	conn      *websocket.Conn
	cancel    context.CancelFunc
	keepAlive time.Duration

	partials chan stt.Transcript
	finals   chan stt.Transcript
	audio    chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newSession(parent context.Context, conn *websocket.Conn, keepAlive time.Duration) *session {
	ctx, cancel := context.WithCancel(parent)
	s := &session{
		conn:      conn,
		cancel:    cancel,
		keepAlive: keepAlive,
		partials:  make(chan stt.Transcript, 64),
		finals:    make(chan stt.Transcript, 64),
		audio:     make(chan []byte, 256),
		done:      make(chan struct{}),
	}
	s.wg.Add(2)
	go s.readLoop(ctx)
	go s.writeLoop(ctx)
	return s
}

// SendAudio never blocks: a full queue drops the chunk and returns
// stt.ErrAudioOverflow.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stt.ErrSessionClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	default:
		return stt.ErrAudioOverflow
	}
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }

func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// Close sends CloseStream so Deepgram flushes its last results, waits up to
// five seconds for them and then drops the connection. Any utterance still
// being assembled is emitted as a final. Close is idempotent.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		waited := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(5 * time.Second):
			slog.Warn("deepgram: close timed out waiting for final results")
		}
		s.cancel()
		_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
		<-waited
	})
	return nil
}

// writeLoop forwards audio, keeps an idle stream open and on Close drains
// the queue before asking the server to finish.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	tick := time.NewTicker(s.keepAlive)
	defer tick.Stop()
	last := time.Now()

	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
			last = time.Now()
		case <-tick.C:
			if time.Since(last) < s.keepAlive {
				continue
			}
			if err := s.conn.Write(ctx, websocket.MessageText, msgKeepAlive); err != nil {
				return
			}
			last = time.Now()
		case <-s.done:
		drain:
			for {
				select {
				case chunk := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					break drain
				}
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			_ = s.conn.Write(wctx, websocket.MessageText, msgCloseStream)
			cancel()
			return
		}
	}
}

// readLoop assembles utterances from server messages until the connection
// ends. Results arriving while the consumer is behind are dropped.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var u utterance
	defer func() {
		if final, ok := u.flush(); ok {
			s.emit(s.finals, final)
		}
	}()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		ev := parseMessage(data)
		switch ev.kind {
		case eventUtteranceEnd:
			if final, ok := u.flush(); ok {
				s.emit(s.finals, final)
			}
		case eventResult:
			partial, final, done := u.add(ev)
			if done {
				s.emit(s.finals, final)
			} else if partial.Text != "" {
				s.emit(s.partials, partial)
			}
		}
	}
}

func (s *session) emit(ch chan stt.Transcript, t stt.Transcript) {
	select {
	case ch <- t:
	default:
		slog.Warn("deepgram: transcript dropped", "final", t.IsFinal)
	}
}
