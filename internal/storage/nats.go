package storage

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/quicksend/quicksend/internal/config"
)

// NewNATSConn connects to the event bus with unbounded reconnects so the
// thumbnail pipeline survives broker restarts.
func NewNATSConn(cfg config.NATSConfig) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}
