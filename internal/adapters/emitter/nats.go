package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
	"github.com/komparedocers/autonomous-lead-qualification/pkg/metrics"
)

// Default NATS emitter configuration constants.
const (
	defaultSubjectPrefix = "signals.detected"
	defaultClientName    = "signald-emitter"
	defaultReconnectWait = 2 * time.Second
	defaultConnTimeout   = 5 * time.Second
)

// NATSEmitter publishes signals to a NATS subject per company, so consumers
// can subscribe to signals.detected.> or a single company's stream.
type NATSEmitter struct {
	conn          *nats.Conn
	subjectPrefix string
	log           logger.Logger
}

// NATSOption applies a configuration option to the NATSEmitter.
type NATSOption func(*natsConfig)

type natsConfig struct {
	subjectPrefix string
	clientName    string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
}

// WithSubjectPrefix overrides the subject prefix for published signals.
func WithSubjectPrefix(prefix string) NATSOption {
	return func(c *natsConfig) {
		if prefix != "" {
			c.subjectPrefix = prefix
		}
	}
}

// WithClientName sets the NATS connection name.
func WithClientName(name string) NATSOption {
	return func(c *natsConfig) {
		if name != "" {
			c.clientName = name
		}
	}
}

// WithReconnectWait sets the wait between reconnection attempts.
func WithReconnectWait(d time.Duration) NATSOption {
	return func(c *natsConfig) {
		if d > 0 {
			c.reconnectWait = d
		}
	}
}

// NewNATSEmitter connects to the broker and returns a ready emitter.
func NewNATSEmitter(url string, log logger.Logger, opts ...NATSOption) (*NATSEmitter, error) {
	cfg := &natsConfig{
		subjectPrefix: defaultSubjectPrefix,
		clientName:    defaultClientName,
		maxReconnects: -1, // reconnect until shutdown
		reconnectWait: defaultReconnectWait,
		timeout:       defaultConnTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	conn, err := nats.Connect(url,
		nats.Name(cfg.clientName),
		nats.MaxReconnects(cfg.maxReconnects),
		nats.ReconnectWait(cfg.reconnectWait),
		nats.Timeout(cfg.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(context.Background(), "broker disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info(context.Background(), "broker reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEmitter{
		conn:          conn,
		subjectPrefix: cfg.subjectPrefix,
		log:           log,
	}, nil
}

// Publish implements Emitter.
func (e *NATSEmitter) Publish(ctx context.Context, sig *model.Signal) error {
	if sig == nil || sig.ID == "" {
		return ErrInvalidSignal
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal %s: %w", sig.ID, err)
	}

	subject := e.subjectPrefix + "." + sig.CompanyID
	if err := e.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish signal %s to %s: %w", sig.ID, subject, err)
	}
	metrics.RecordSignalEmitted(string(sig.Kind))
	return nil
}

// Close drains the connection, letting buffered publishes flush.
func (e *NATSEmitter) Close() error {
	if err := e.conn.Drain(); err != nil {
		e.conn.Close()
		return err
	}
	return nil
}
