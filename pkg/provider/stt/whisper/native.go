// Building NativeProvider needs libwhisper.a and whisper.h on LIBRARY_PATH
// and C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider runs whisper.cpp in-process. The model is loaded once;
// every inference gets its own context on that model.
//
// Inference holds its goroutine inside cgo for the whole utterance.
type NativeProvider struct {
	model whisperlib.Model
	settings

	// Contexts share model buffers, so Process calls are serialized.
	mu sync.Mutex
}

// NewNative loads the model at modelPath. Close releases it.
func NewNative(modelPath string, opts ...Option) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &NativeProvider{model: model, settings: newSettings(opts)}, nil
}

func (p *NativeProvider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}

// StartStream opens a session. Zero fields of cfg fall back to provider
// defaults.
func (p *NativeProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	sc := p.resolve(cfg)
	return startStream(ctx, "native", p.segmenter(sc), func(_ context.Context, pcm []byte) (string, error) {
		return p.transcribe(pcm, sc)
	}), nil
}

func (p *NativeProvider) transcribe(pcm []byte, cfg stt.StreamConfig) (string, error) {
	samples := pcmToFloat32Mono(pcm, cfg.Channels)

	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(cfg.Language); err != nil {
		slog.Warn("whisper: unsupported language, using model default", "language", cfg.Language, "err", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	if prompt := keywordPrompt(cfg.Keywords); prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for seg, err := wctx.NextSegment(); !errors.Is(err, io.EOF); seg, err = wctx.NextSegment() {
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		parts = append(parts, seg.Text)
	}
	return joinSegments(parts), nil
}
