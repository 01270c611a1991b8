package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName is the JetStream stream that captures all events.
const StreamName = "INTERVUE_EVENTS"

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

// NATSOption configures a [NATSPublisher].
type NATSOption func(*NATSPublisher)

// WithQueueSize sets how many events may wait for delivery. Events beyond
// that are dropped.
func WithQueueSize(n int) NATSOption {
	return func(p *NATSPublisher) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithPublishTimeout bounds each JetStream publish.
func WithPublishTimeout(d time.Duration) NATSOption {
	return func(p *NATSPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NATSPublisher publishes events to JetStream subjects
// "<prefix>.<event_type>" from a single background goroutine.
type NATSPublisher struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	prefix    string
	queueSize int
	timeout   time.Duration

	queue chan Event
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to url, ensures the event stream exists and
// starts the delivery loop. The connection retries and reconnects forever.
func NewNATSPublisher(ctx context.Context, url, prefix string, opts ...NATSOption) (*NATSPublisher, error) {
	if prefix == "" {
		prefix = "intervue"
	}
	nc, err := nats.Connect(url,
		nats.Name("intervue"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: jetstream init: %w", err)
	}

	p := &NATSPublisher{
		nc:        nc,
		js:        js,
		prefix:    prefix,
		queueSize: defaultQueueSize,
		timeout:   defaultPublishTimeout,
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	p.queue = make(chan Event, p.queueSize)
	p.wg.Add(1)
	go p.loop()
	return p, nil
}

func (p *NATSPublisher) ensureStream(ctx context.Context) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{p.prefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("events: ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish queues e for delivery. A full queue or a closed publisher drops
// the event with a warning.
func (p *NATSPublisher) Publish(_ context.Context, e Event) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- e:
	default:
		slog.Warn("event queue full, dropping event", "event_type", e.EventType, "session_id", e.SessionID)
	}
}

func (p *NATSPublisher) loop() {
	defer p.wg.Done()
	for {
		select {
		case e := <-p.queue:
			p.send(e)
		case <-p.done:
			// Drain what was queued before Close.
			for {
				select {
				case e := <-p.queue:
					p.send(e)
				default:
					return
				}
			}
		}
	}
}

func (p *NATSPublisher) send(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("event marshal failed", "event_type", e.EventType, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if _, err := p.js.Publish(ctx, p.Subject(e.EventType), data, jetstream.WithMsgID(e.EventID)); err != nil {
		slog.Warn("event publish failed", "event_type", e.EventType, "session_id", e.SessionID, "error", err)
	}
}

// Close flushes queued events and closes the connection.
func (p *NATSPublisher) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()
		err = p.nc.Drain()
		if errors.Is(err, nats.ErrConnectionClosed) {
			err = nil
		}
	})
	return err
}
