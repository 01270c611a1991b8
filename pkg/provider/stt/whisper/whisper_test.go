package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/intervue/pkg/provider/stt"
	"github.com/MrWong99/intervue/pkg/provider/stt/whisper"
)

// inferenceServer answers POST /inference with responseText and records the
// form fields of the last request.
type inferenceServer struct {
	*httptest.Server
	calls atomic.Int32

	mu       sync.Mutex
	language string
	prompt   string
}

func newInferenceServer(t *testing.T, responseText string, status int) *inferenceServer {
	t.Helper()
	s := &inferenceServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.calls.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			s.mu.Lock()
			s.language = r.FormValue("language")
			s.prompt = r.FormValue("prompt")
			s.mu.Unlock()
		}
		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *inferenceServer) lastFields() (language, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language, s.prompt
}

// makeSpeechPCM returns a 440 Hz tone with an RMS far above the silence
// threshold.
func makeSpeechPCM(samples int) []byte {
	const amplitude = 10_000.0
	buf := make([]byte, samples*2)
	for i := range samples {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func makeSilencePCM(samples int) []byte { return make([]byte, samples*2) }

func mustStartStream(t *testing.T, p stt.Provider, cfg stt.StreamConfig) stt.SessionHandle {
	t.Helper()
	h, err := p.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartStream() error: %v", err)
	}
	return h
}

var mono16k = stt.StreamConfig{SampleRate: 16000, Channels: 1}

func TestNew_RequiresServerURL(t *testing.T) {
	t.Parallel()

	if _, err := whisper.New(""); err == nil {
		t.Fatal("New(\"\") returned nil error")
	}
	p, err := whisper.New("http://localhost:8080/",
		whisper.WithModel("small"),
		whisper.WithLanguage("en"),
		whisper.WithSampleRate(16000),
		whisper.WithSilenceThresholdMs(300),
		whisper.WithMaxUtteranceMs(5000),
		whisper.WithHTTPClient(http.DefaultClient),
	)
	if err != nil || p == nil {
		t.Fatalf("New() = %v, %v", p, err)
	}
}

func TestStartStream_CancelledContext(t *testing.T) {
	t.Parallel()

	p, _ := whisper.New("http://localhost:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.StartStream(ctx, mono16k); err == nil {
		t.Fatal("StartStream() with cancelled context returned nil error")
	}
}

func TestStream_SilenceAloneDoesNotInfer(t *testing.T) {
	t.Parallel()

	srv := newInferenceServer(t, "unexpected", http.StatusOK)
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(50))
	h := mustStartStream(t, p, mono16k)

	_ = h.SendAudio(makeSilencePCM(16000))
	time.Sleep(100 * time.Millisecond)
	_ = h.Close()

	if n := srv.calls.Load(); n != 0 {
		t.Errorf("inference called %d times for silence, want 0", n)
	}
}

func TestStream_SpeechThenSilenceEmitsUtterance(t *testing.T) {
	t.Parallel()

	const want = "我负责过支付系统的重构"
	srv := newInferenceServer(t, want, http.StatusOK)
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	if err := h.SendAudio(makeSpeechPCM(1600)); err != nil {
		t.Fatalf("SendAudio(speech) error: %v", err)
	}
	if err := h.SendAudio(makeSilencePCM(1600)); err != nil {
		t.Fatalf("SendAudio(silence) error: %v", err)
	}

	select {
	case tr := <-h.Partials():
		if tr.Text != want || tr.IsFinal {
			t.Errorf("partial = %+v, want non-final %q", tr, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for partial")
	}
	select {
	case tr := <-h.Finals():
		if tr.Text != want || !tr.IsFinal {
			t.Errorf("final = %+v, want final %q", tr, want)
		}
		if tr.Duration != 200*time.Millisecond {
			t.Errorf("final duration = %v, want 200ms", tr.Duration)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for final")
	}
	if got, _ := srv.lastFields(); got != "zh" {
		t.Errorf("language field = %q, want default zh", got)
	}
}

func TestStream_StreamConfigFields(t *testing.T) {
	t.Parallel()

	srv := newInferenceServer(t, "hello", http.StatusOK)
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, stt.StreamConfig{
		SampleRate: 16000,
		Language:   "en",
		Keywords:   []stt.KeywordBoost{{Keyword: "Kubernetes"}, {Keyword: "PostgreSQL", Boost: 2}},
	})
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))
	select {
	case <-h.Finals():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for final")
	}
	lang, prompt := srv.lastFields()
	if lang != "en" {
		t.Errorf("language field = %q, want en", lang)
	}
	if prompt != "Kubernetes, PostgreSQL" {
		t.Errorf("prompt field = %q, want the keyword list", prompt)
	}
}

func TestStream_MaxBufferForcesFlush(t *testing.T) {
	t.Parallel()

	srv := newInferenceServer(t, "long answer", http.StatusOK)
	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(10_000),
		whisper.WithMaxUtteranceMs(200),
	)
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(3360))
	select {
	case tr := <-h.Finals():
		if tr.Text != "long answer" {
			t.Errorf("final = %q, want %q", tr.Text, "long answer")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forced flush")
	}
}

func TestStream_CloseFlushesAndClosesChannels(t *testing.T) {
	t.Parallel()

	srv := newInferenceServer(t, "last words", http.StatusOK)
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(60_000))
	h := mustStartStream(t, p, mono16k)

	_ = h.SendAudio(makeSpeechPCM(1600))
	time.Sleep(50 * time.Millisecond)
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	var got []string
	for tr := range h.Finals() {
		got = append(got, tr.Text)
	}
	if len(got) != 1 || got[0] != "last words" {
		t.Errorf("finals after close = %v, want [last words]", got)
	}
	if _, open := <-h.Partials(); open {
		// Drain the matching partial; the channel must then be closed.
		if _, open := <-h.Partials(); open {
			t.Error("Partials channel still open after Close()")
		}
	}
}

func TestStream_SendAudioAfterClose(t *testing.T) {
	t.Parallel()

	srv := newInferenceServer(t, "", http.StatusOK)
	p, _ := whisper.New(srv.URL)
	h := mustStartStream(t, p, mono16k)
	_ = h.Close()

	if err := h.SendAudio(makeSpeechPCM(100)); !errors.Is(err, stt.ErrSessionClosed) {
		t.Errorf("SendAudio() after Close error = %v, want ErrSessionClosed", err)
	}
}

func TestStream_ServerErrorAndEmptyTextEmitNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		status int
	}{
		{"server error", "ignored", http.StatusInternalServerError},
		{"empty text", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newInferenceServer(t, tt.text, tt.status)
			p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
			h := mustStartStream(t, p, mono16k)

			_ = h.SendAudio(makeSpeechPCM(1600))
			_ = h.SendAudio(makeSilencePCM(1600))
			deadline := time.Now().Add(2 * time.Second)
			for srv.calls.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			_ = h.Close()

			for tr := range h.Finals() {
				t.Errorf("unexpected final %q", tr.Text)
			}
		})
	}
}

func TestStream_ConcurrentSendAudio(t *testing.T) {
	t.Parallel()

	srv := newInferenceServer(t, "hello", http.StatusOK)
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				err := h.SendAudio(makeSpeechPCM(160))
				if err != nil && !errors.Is(err, stt.ErrAudioOverflow) {
					t.Errorf("SendAudio() error: %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
