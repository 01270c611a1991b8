// Package whisper provides whisper.cpp-backed STT providers.
//
// whisper.cpp is a batch engine, so both providers emulate streaming: audio
// is buffered, an energy-based silence detector finds the end of each
// utterance, and the utterance is transcribed as a whole. Each transcript is
// emitted once on Partials and once on Finals.
//
// [Provider] talks to a running whisper-server over its POST /inference
// endpoint. [NativeProvider] links whisper.cpp through cgo and runs inference
// in-process.
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("zh"),
//	    whisper.WithSilenceThresholdMs(700),
//	)
//	handle, err := p.StartStream(ctx, cfg)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/intervue/pkg/provider/stt"
)

var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider on top of a whisper.cpp HTTP server.
type Provider struct {
	serverURL string
	settings
}

// New returns a Provider for the whisper-server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	return &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		settings:  newSettings(opts),
	}, nil
}

// StartStream opens a session. No connection is made until the first
// utterance completes. Zero fields of cfg fall back to provider defaults.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	sc := p.resolve(cfg)
	return startStream(ctx, "http", p.segmenter(sc), func(ctx context.Context, pcm []byte) (string, error) {
		return p.infer(ctx, pcm, sc)
	}), nil
}

// infer uploads pcm as a WAV file and returns the recognized text.
func (p *Provider) infer(ctx context.Context, pcm []byte, cfg stt.StreamConfig) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(encodeWAV(pcm, cfg.SampleRate, cfg.Channels)); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	fields := map[string]string{
		"language":        cfg.Language,
		"model":           p.modelName,
		"prompt":          keywordPrompt(cfg.Keywords),
		"response_format": "json",
		"temperature":     "0",
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

// keywordPrompt turns boosted keywords into an initial prompt. whisper has
// no keyword boosting; terms seen in the prompt are more likely to be
// spelled the same way in the transcript.
func keywordPrompt(kws []stt.KeywordBoost) string {
	if len(kws) == 0 {
		return ""
	}
	terms := make([]string, 0, len(kws))
	for _, kw := range kws {
		if t := strings.TrimSpace(kw.Keyword); t != "" {
			terms = append(terms, t)
		}
	}
	return strings.Join(terms, ", ")
}

// joinSegments concatenates recognized segments, without spaces between
// Han characters.
func joinSegments(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			last, _ := utf8.DecodeLastRuneInString(b.String())
			first, _ := utf8.DecodeRuneInString(p)
			if !unicode.Is(unicode.Han, last) && !unicode.Is(unicode.Han, first) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(p)
	}
	return b.String()
}
