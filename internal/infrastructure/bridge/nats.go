// Package bridge implements the inter-process bridge to the wallet's
// media cache manager over NATS.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/aosk-dev/nftmedia/internal/domain/repository"
)

// Bridge subjects. The verifier publishes and requests; the cache manager
// process serves both.
const (
	subjectAdjust = "mediacache.adjust"
	subjectSVG    = "mediacache.svg"
)

// ClientConfig holds configuration for the NATS bridge client.
type ClientConfig struct {
	URL            string        // NATS server URL (e.g., nats://host:4222)
	Name           string        // Connection name reported to the server
	RequestTimeout time.Duration // Per-request timeout for request/reply calls
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:            url,
		Name:           "nftmedia",
		RequestTimeout: 5 * time.Second,
	}
}

// natsConnection abstracts *nats.Conn for testability.
type natsConnection interface {
	Publish(subj string, data []byte) error
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

// adjustMessage is the wire format on the adjust subject.
type adjustMessage struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	Instances     []string  `json:"instances"`
}

// svgRequest asks the cache manager to resolve a persisted cache
// reference into renderable SVG markup.
type svgRequest struct {
	Ref string `json:"ref"`
}

type svgResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Client implements repository.CacheBridge over NATS.
type Client struct {
	conn   natsConnection
	config ClientConfig
}

// Compile-time verification that Client implements CacheBridge.
var _ repository.CacheBridge = (*Client)(nil)

// NewClient connects to NATS and returns a bridge client.
func NewClient(cfg ClientConfig) (*Client, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newClientWithConnection(conn, cfg), nil
}

// newClientWithConnection creates a Client with a given natsConnection.
// This is used for dependency injection in tests.
func newClientWithConnection(conn natsConnection, cfg ClientConfig) *Client {
	return &Client{
		conn:   conn,
		config: cfg,
	}
}

// AdjustCacheLimit publishes a fire-and-forget rebalance request for the
// given cache instances.
func (c *Client) AdjustCacheLimit(ctx context.Context, instances []string) error {
	msg := adjustMessage{
		CorrelationID: uuid.New(),
		Instances:     instances,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal adjust message: %w", err)
	}

	if err := c.conn.Publish(subjectAdjust, data); err != nil {
		return fmt.Errorf("failed to publish adjust message: %w", err)
	}

	return nil
}

// ResolveSVGContent asks the cache manager for the SVG markup behind a
// persisted cache reference.
func (c *Client) ResolveSVGContent(ctx context.Context, ref string) (string, error) {
	data, err := json.Marshal(svgRequest{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("failed to marshal svg request: %w", err)
	}

	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	msg, err := c.conn.RequestWithContext(ctx, subjectSVG, data)
	if err != nil {
		return "", fmt.Errorf("failed to request svg content: %w", err)
	}

	var resp svgResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode svg response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("svg resolution failed: %s", resp.Error)
	}

	return resp.Content, nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
