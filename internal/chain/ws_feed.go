package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// WSFeedConfig configures the WebSocket pool-event feed.
type WSFeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSFeedConfig returns default feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSFeed implements EventFeed over a WebSocket subscription to factory
// pool-created events. The feed reconnects with exponential backoff;
// events missed during a reconnect are picked up by the next scheduled
// tick, so gaps here are not a correctness problem.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig
	logger   *log.Logger
}

// NewWSFeed creates a new pool-event feed.
func NewWSFeed(endpoint string, config *WSFeedConfig, logger *log.Logger) *WSFeed {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WSFeed{endpoint: endpoint, config: cfg, logger: logger}
}

var _ EventFeed = (*WSFeed)(nil)

// wsSubscribeRequest asks the node to stream factory pool events.
type wsSubscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
}

// wsPoolNotification is a single streamed pool-created event.
type wsPoolNotification struct {
	Method string `json:"method"`
	Params struct {
		Pool string `json:"pool"`
	} `json:"params"`
}

// Subscribe connects and starts streaming pool-created events until ctx
// is cancelled. The returned channel is closed on shutdown.
func (f *WSFeed) Subscribe(ctx context.Context) (<-chan PoolEvent, error) {
	// Fail fast on an unreachable endpoint so misconfiguration is
	// visible at startup rather than buried in reconnect logs.
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}

	events := make(chan PoolEvent, 16)
	go f.run(ctx, conn, events)
	return events, nil
}

func (f *WSFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	req := wsSubscribeRequest{JSONRPC: "2.0", ID: 1, Method: "subscribePools"}
	conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("websocket subscribe: %w", err)
	}

	return conn, nil
}

// run reads notifications and reconnects on failure.
func (f *WSFeed) run(ctx context.Context, conn *websocket.Conn, events chan<- PoolEvent) {
	defer close(events)
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	delay := f.config.ReconnectDelay

	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > f.config.MaxReconnectDelay {
				delay = f.config.MaxReconnectDelay
			}

			var err error
			conn, err = f.dial(ctx)
			if err != nil {
				f.logger.Printf("Pool feed reconnect failed: %v", err)
				continue
			}
			f.logger.Println("Pool feed reconnected")
			delay = f.config.ReconnectDelay
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Printf("Pool feed read error: %v", err)
			conn.Close()
			conn = nil
			continue
		}

		var note wsPoolNotification
		if err := json.Unmarshal(msg, &note); err != nil {
			f.logger.Printf("Pool feed malformed message: %v", err)
			continue
		}
		if note.Method != "poolCreated" || note.Params.Pool == "" {
			// Subscription ack or unrelated notification.
			continue
		}

		select {
		case events <- PoolEvent{Pool: note.Params.Pool}:
		case <-ctx.Done():
			return
		}
	}
}
