package interview_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/intervue/internal/interview"
	"github.com/MrWong99/intervue/pkg/provider/stt"
	sttmock "github.com/MrWong99/intervue/pkg/provider/stt/mock"
)

func TestStreamRecognizer_SkipsBlankFinals(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession(4)
	rec := interview.NewStreamRecognizer(sess)

	sess.EmitPartial("I led")
	sess.EmitFinal("   ")
	sess.EmitFinal(" I led the migration. ")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := rec.NextUtterance(ctx)
	if err != nil {
		t.Fatalf("NextUtterance() error: %v", err)
	}
	if got != "I led the migration." {
		t.Errorf("NextUtterance() = %q, want %q", got, "I led the migration.")
	}
}

func TestStreamRecognizer_WithCorrection(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession(4)
	rec := interview.NewStreamRecognizer(sess, interview.WithCorrection(func(text string) string {
		if text == "um" {
			return ""
		}
		return strings.ReplaceAll(text, "kubernetis", "Kubernetes")
	}))

	sess.EmitFinal("um")
	sess.EmitFinal("we run kubernetis")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := rec.NextUtterance(ctx)
	if err != nil {
		t.Fatalf("NextUtterance() error: %v", err)
	}
	if got != "we run Kubernetes" {
		t.Errorf("NextUtterance() = %q, want %q", got, "we run Kubernetes")
	}
}

func TestStreamRecognizer_StopUnblocks(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession(1)
	rec := interview.NewStreamRecognizer(sess)

	errc := make(chan error, 1)
	go func() {
		_, err := rec.NextUtterance(context.Background())
		errc <- err
	}()

	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, interview.ErrRecognizerClosed) {
			t.Errorf("NextUtterance() error = %v, want ErrRecognizerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("NextUtterance() did not return after Stop")
	}
	if err := rec.Feed([]byte{1}); !errors.Is(err, stt.ErrSessionClosed) {
		t.Errorf("Feed() after Stop error = %v, want ErrSessionClosed", err)
	}
}

func TestProviderRecognizerFactory(t *testing.T) {
	t.Parallel()

	p := &sttmock.Provider{}
	cfg := stt.StreamConfig{SampleRate: 16000, Language: "zh"}
	newRec := interview.ProviderRecognizerFactory(p, cfg)

	rec, err := newRec(context.Background(), "s1")
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}
	if err := rec.Feed([]byte{1, 2}); err != nil {
		t.Fatalf("Feed() error: %v", err)
	}

	calls := p.Calls()
	if len(calls) != 1 || calls[0].Cfg.Language != "zh" {
		t.Fatalf("StartStream calls = %+v, want one with language zh", calls)
	}
	if got := len(p.Sessions()[0].Chunks()); got != 1 {
		t.Errorf("session received %d chunks, want 1", got)
	}

	p.StartStreamErr = errors.New("quota")
	if _, err := newRec(context.Background(), "s2"); err == nil {
		t.Error("factory returned nil error for failing provider")
	}
}
