package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scribe/internal/logging"
	"scribe/internal/services"
)

const (
	dialTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	initialBackoff  = time.Second
	maxFrameBytes   = 1 << 20
	pingInterval    = 30 * time.Second
	pongGracePeriod = 10 * time.Second
)

// Handler consumes one inbound event. It must not block for long; slow work
// belongs behind the pipeline's bounded queue, whose backpressure propagates
// here naturally.
type Handler func(Event)

// Client maintains a websocket subscription to a relay, redelivering inbound
// events to a handler and publishing outbound events. Disconnections are
// retried with capped exponential backoff; the relay may replay events after
// a reconnect, which downstream dedup absorbs.
type Client struct {
	url        string
	maxBackoff time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New constructs a relay client for the given websocket URL.
func New(url string, maxBackoff time.Duration, logger *slog.Logger) *Client {
	if maxBackoff <= 0 {
		maxBackoff = 60 * time.Second
	}
	return &Client{
		url:        url,
		maxBackoff: maxBackoff,
		logger:     logging.NewComponentLogger(logger, "relay"),
	}
}

// Subscribe connects and delivers inbound events to handler until ctx is
// canceled. Connection loss triggers reconnection, never an error return;
// the only exit path is cancellation.
func (c *Client) Subscribe(ctx context.Context, handler Handler) error {
	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("relay connection failed",
				logging.String("url", c.url),
				logging.Duration("retry_in", backoff),
				logging.Error(err))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, c.maxBackoff)
			continue
		}

		c.setConn(conn)
		c.logger.Info("relay connected", logging.String("url", c.url))
		backoff = initialBackoff

		err = c.readLoop(ctx, conn, handler)
		c.setConn(nil)
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("relay connection lost, reconnecting",
			logging.String("url", c.url),
			logging.Error(err))
	}
}

// Publish sends an outbound event over the current connection.
func (c *Client) Publish(ctx context.Context, event Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return services.Wrap(services.ErrTransient, "relay", "publish", "not connected", nil)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return services.Wrap(services.ErrValidation, "relay", "publish", "marshal event", err)
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return services.Wrap(services.ErrTransient, "relay", "publish", "connection closed", nil)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return services.Wrap(services.ErrTransient, "relay", "publish", event.ID, err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxFrameBytes)
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, handler Handler) error {
	// Unblock the read when ctx is canceled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongGracePeriod))
	})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				if c.conn == conn {
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
				c.mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pingInterval + pongGracePeriod))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pingInterval + pongGracePeriod))

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			// Malformed frames are ingestion noise, not pipeline errors.
			c.logger.Debug("dropping malformed relay frame", logging.Error(err))
			continue
		}
		if event.ID == "" {
			c.logger.Debug("dropping relay event without id")
			continue
		}
		handler(event)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
