// Package nats wraps a best-effort NATS connection used solely as a
// low-latency wake-up signal for idle workers; nothing in the Queue or
// Worker depends on it for correctness.
package nats

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Client wraps a core NATS connection (no JetStream: wake-up messages are
// fire-and-forget and losing one costs nothing but a slightly later poll).
type Client struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewClient dials url with production-ready reconnect settings.
func NewClient(url string, maxReconnects int, reconnectWait time.Duration, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("component", "nats_client")
	if maxReconnects == 0 {
		maxReconnects = -1
	}

	opts := []nats.Option{
		nats.Name("unified-events"),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.Timeout(10 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				entry.WithError(err).Warn("disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			entry.WithField("url", nc.ConnectedUrl()).Info("reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			entry.WithError(err).Warn("nats error")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	entry.WithField("url", url).Info("connected")
	return &Client{conn: conn, logger: entry}, nil
}

func (c *Client) Connection() *nats.Conn { return c.conn }

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Drain()
	}
}

func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
