// Package transport exposes interview sessions over WebSocket.
//
// Each session accepts one audio connection carrying binary audio chunks and
// one video connection carrying text frames of the form "<ts>:<base64>".
// Follow-up questions are pushed back to the client as text messages.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/intervue/internal/interview"
)

// DefaultReadLimit is the maximum size of a single inbound message. Video
// frames are base64 images, so the limit is well above the websocket default.
const DefaultReadLimit = 8 << 20

// detachTimeout bounds the cleanup that may run after a client disconnects.
const detachTimeout = 30 * time.Second

// Options configures a [Handler].
type Options struct {
	// OriginPatterns lists host patterns allowed in addition to the request
	// host. See [websocket.AcceptOptions].
	OriginPatterns []string

	// InsecureSkipVerify disables origin checks entirely.
	InsecureSkipVerify bool

	// ReadLimit overrides [DefaultReadLimit] when positive.
	ReadLimit int64
}

// Handler serves the audio and video WebSocket endpoints.
type Handler struct {
	reg  *interview.Registry
	opts Options
}

// NewHandler returns a handler bound to reg.
func NewHandler(reg *interview.Registry, opts Options) *Handler {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	return &Handler{reg: reg, opts: opts}
}

// Routes mounts the WebSocket endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/ws/audio/{session_id}", h.serveAudio)
	r.Get("/ws/video/{session_id}", h.serveVideo)
}

func (h *Handler) serveAudio(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, interview.KindAudio)
}

func (h *Handler) serveVideo(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, interview.KindVideo)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, kind interview.Kind) {
	id := chi.URLParam(r, "session_id")
	if _, err := h.reg.Get(id); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.opts.OriginPatterns,
		InsecureSkipVerify: h.opts.InsecureSkipVerify,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", id, "kind", kind, "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.opts.ReadLimit)

	ep := &wsEndpoint{conn: conn}
	if err := h.attach(id, kind, ep); err != nil {
		slog.Info("session went away before attach", "session_id", id, "kind", kind)
		conn.Close(websocket.StatusPolicyViolation, "session not found")
		return
	}
	slog.Info("client connected", "session_id", id, "kind", kind)

	ctx := r.Context()
	if kind == interview.KindAudio {
		err = h.readAudio(ctx, conn, id)
	} else {
		err = h.readVideo(ctx, conn, id)
	}
	ep.markClosed()

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		slog.Info("client disconnected", "session_id", id, "kind", kind)
	case errors.Is(err, interview.ErrNotFound):
		slog.Info("session closed under connection", "session_id", id, "kind", kind)
		conn.Close(websocket.StatusNormalClosure, "session closed")
	default:
		slog.Info("client connection lost", "session_id", id, "kind", kind, "err", err)
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
	defer cancel()
	h.detach(dctx, id, kind, ep)
}

func (h *Handler) attach(id string, kind interview.Kind, ep interview.Endpoint) error {
	if kind == interview.KindAudio {
		return h.reg.AttachAudio(id, ep)
	}
	return h.reg.AttachVideo(id, ep)
}

func (h *Handler) detach(ctx context.Context, id string, kind interview.Kind, ep interview.Endpoint) {
	if kind == interview.KindAudio {
		h.reg.DetachAudio(ctx, id, ep)
		return
	}
	h.reg.DetachVideo(ctx, id, ep)
}

// readAudio forwards binary messages to the session until the connection
// fails or the session goes away.
func (h *Handler) readAudio(ctx context.Context, conn *websocket.Conn, id string) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageBinary {
			slog.Debug("ignoring text message on audio socket", "session_id", id, "len", len(data))
			continue
		}
		if err := h.reg.FeedAudio(id, data); err != nil {
			if errors.Is(err, interview.ErrNotFound) || errors.Is(err, interview.ErrWorkerStopped) {
				return interview.ErrNotFound
			}
			slog.Warn("failed to feed audio", "session_id", id, "err", err)
		}
	}
}

// readVideo parses text frames and buffers them on the session. Malformed
// frames are skipped.
func (h *Handler) readVideo(ctx context.Context, conn *websocket.Conn, id string) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			slog.Debug("ignoring binary message on video socket", "session_id", id, "len", len(data))
			continue
		}
		ts, payload, err := ParseFrame(string(data))
		if err != nil {
			slog.Warn("skipping video frame", "session_id", id, "err", err)
			continue
		}
		if err := h.reg.FeedFrame(id, payload, ts); err != nil {
			return err
		}
	}
}
