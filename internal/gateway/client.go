package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// InteractionHandler receives slash-command invocations.
type InteractionHandler func(ctx context.Context, in Interaction)

// MessageHandler receives raw message events.
type MessageHandler func(ctx context.Context, msg Message)

// Client maintains the websocket connection to the platform gateway and
// exposes the REST send surface. Event handlers run on their own
// goroutine per event so a slow handler never stalls the read loop.
type Client struct {
	gatewayURL string
	apiBase    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	onInteraction InteractionHandler
	onMessage     MessageHandler
}

// NewClient creates a gateway client. gatewayURL is the websocket event
// endpoint, apiBase the REST endpoint, token the platform credential.
func NewClient(gatewayURL, apiBase, token string) *Client {
	return &Client{
		gatewayURL: gatewayURL,
		apiBase:    apiBase,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
}

// OnInteraction registers the slash-command handler. Must be called
// before Run.
func (c *Client) OnInteraction(h InteractionHandler) {
	c.onInteraction = h
}

// OnMessage registers the message handler. Must be called before Run.
func (c *Client) OnMessage(h MessageHandler) {
	c.onMessage = h
}

// Run connects to the gateway and consumes events until ctx is cancelled,
// reconnecting with exponential backoff on connection loss.
func (c *Client) Run(ctx context.Context) error {
	delay := initialReconnectDelay
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		connected, err := c.readLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = initialReconnectDelay
		}
		c.logger.Warn("gateway connection lost, reconnecting", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// readLoop dials the gateway and consumes frames until the connection
// drops or ctx ends. The bool reports whether the dial succeeded, so Run
// can reset its backoff.
func (c *Client) readLoop(ctx context.Context) (bool, error) {
	header := http.Header{"Authorization": {"Bearer " + c.token}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dialing gateway: %w (status %d)", err, resp.StatusCode)
		}
		return false, fmt.Errorf("dialing gateway: %w", err)
	}
	defer conn.Close()
	c.logger.Info("gateway connected", "url", c.gatewayURL)

	// Unblock ReadMessage when the context ends. The watcher must also
	// exit when this connection is torn down, or every reconnect would
	// leave one behind.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("reading gateway frame: %w", err)
		}
		c.handleFrame(ctx, data)
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("discarding malformed gateway frame", "error", err)
		return
	}

	switch env.Type {
	case eventInteractionCreate:
		var in Interaction
		if err := json.Unmarshal(env.Data, &in); err != nil {
			c.logger.Warn("discarding malformed interaction", "error", err)
			return
		}
		if c.onInteraction != nil {
			go c.onInteraction(ctx, in)
		}
	case eventMessageCreate:
		var msg Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			c.logger.Warn("discarding malformed message", "error", err)
			return
		}
		if c.onMessage != nil {
			go c.onMessage(ctx, msg)
		}
	default:
		c.logger.Debug("ignoring gateway event", "type", env.Type)
	}
}
