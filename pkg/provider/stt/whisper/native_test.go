package whisper_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/intervue/pkg/provider/stt/whisper"
)

// testModelPath returns the model used by native tests, skipping the test
// when WHISPER_MODEL_PATH is unset.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_InvalidPath(t *testing.T) {
	if _, err := whisper.NewNative(""); err == nil {
		t.Fatal("NewNative(\"\") returned nil error")
	}
	if _, err := whisper.NewNative("/nonexistent/model.bin"); err == nil {
		t.Fatal("NewNative() with missing file returned nil error")
	}
}

func TestNative_SpeechThenSilenceEmitsFinal(t *testing.T) {
	p, err := whisper.NewNative(testModelPath(t),
		whisper.WithLanguage("en"),
		whisper.WithSilenceThresholdMs(100),
		whisper.WithSampleRate(16000),
		whisper.WithMaxUtteranceMs(5000),
		whisper.WithThreads(2),
	)
	if err != nil {
		t.Fatalf("NewNative() error: %v", err)
	}
	defer p.Close()

	h := mustStartStream(t, p, mono16k)
	defer h.Close()

	_ = h.SendAudio(makeSpeechPCM(1600))
	_ = h.SendAudio(makeSilencePCM(1600))

	// A tone transcribes to model-dependent text, possibly nothing.
	select {
	case tr, ok := <-h.Finals():
		if ok && !tr.IsFinal {
			t.Error("final transcript has IsFinal = false")
		}
		t.Logf("transcribed: %q", tr.Text)
	case <-time.After(30 * time.Second):
		t.Log("no transcript within 30s")
	}
}

func TestNative_CancelledContextAndClose(t *testing.T) {
	p, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative() error: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.StartStream(ctx, mono16k); err == nil {
		t.Fatal("StartStream() with cancelled context returned nil error")
	}

	h := mustStartStream(t, p, mono16k)
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if err := h.SendAudio(makeSpeechPCM(100)); err == nil {
		t.Fatal("SendAudio() after Close returned nil error")
	}
}
