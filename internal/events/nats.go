package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const flushTimeout = 2 * time.Second

// NATSPublisher publishes events to a NATS server.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
	logger *zap.Logger
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("maker"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	p := NewNATSPublisher(nc, prefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisher publishes on an existing connection. Close leaves the
// connection open.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "maker.runs"
	}
	return &NATSPublisher{conn: nc, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Subject returns the subject for a run and event kind.
func (p *NATSPublisher) Subject(runID, kind string) string {
	return Subject(p.prefix, runID, kind)
}

// Subject builds <prefix>.<run_id>.<kind>. Dots and wildcards in the run ID
// are replaced so it stays a single token.
func Subject(prefix, runID, kind string) string {
	token := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(runID)
	if token == "" {
		token = "_"
	}
	return prefix + "." + token + "." + kind
}

// PublishStep implements Publisher.
func (p *NATSPublisher) PublishStep(ctx context.Context, ev StepEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, p.Subject(ev.RunID, KindStep), ev)
}

// PublishRun implements Publisher. Run events are flushed so a completed
// event is not lost when the process exits right after.
func (p *NATSPublisher) PublishRun(ctx context.Context, ev RunEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := p.publish(ctx, p.Subject(ev.RunID, KindRun), ev); err != nil {
		return err
	}
	var err error
	if _, ok := ctx.Deadline(); ok {
		err = p.conn.FlushWithContext(ctx)
	} else {
		err = p.conn.FlushTimeout(flushTimeout)
	}
	if err != nil {
		return fmt.Errorf("flush run event: %w", err)
	}
	return nil
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject), zap.Int("bytes", len(data)))
	return nil
}

// Close drains an owned connection.
func (p *NATSPublisher) Close() error {
	if !p.owned || p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

var _ Publisher = (*NATSPublisher)(nil)
var _ Publisher = NopPublisher{}
