package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"bmsengine/internal/models"
)

// Publisher is the part of a NATS connection the channel needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSChannel publishes alert facts on {prefix}.{source}.{severity}.
type NATSChannel struct {
	conn   Publisher
	prefix string
}

func NewNATSChannel(conn Publisher, prefix string) *NATSChannel {
	return &NATSChannel{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// ConnectNATS dials the broker with reconnects enabled.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (n *NATSChannel) Name() string { return "nats" }

// Subject returns the subject a candidate is published on.
func (n *NATSChannel) Subject(c *models.Candidate) string {
	return fmt.Sprintf("%s.%s.%s", n.prefix, c.Source(), strings.ToLower(string(c.Severity)))
}

func (n *NATSChannel) Send(ctx context.Context, c *models.Candidate) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}
	data, err := json.Marshal(c.Fact())
	if err != nil {
		return Result{Attempts: 1, Err: fmt.Errorf("encode alert fact: %w", err)}
	}
	if err := n.conn.Publish(n.Subject(c), data); err != nil {
		return Result{Attempts: 1, Err: fmt.Errorf("nats publish: %w", err)}
	}
	return Result{Success: true, Attempts: 1}
}
