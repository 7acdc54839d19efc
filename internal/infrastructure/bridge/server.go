package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// AdjustHandler re-enforces the size cap across the given cache instances.
type AdjustHandler func(ctx context.Context, instances []string) error

// SVGHandler resolves a persisted cache reference into SVG markup.
type SVGHandler func(ctx context.Context, ref string) (string, error)

// Server serves the cache manager side of the bridge subjects.
type Server struct {
	conn natsConnection
}

// NewServer connects to NATS and returns a bridge server.
func NewServer(cfg ClientConfig) (*Server, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newServerWithConnection(conn), nil
}

// newServerWithConnection creates a Server with a given natsConnection.
// This is used for dependency injection in tests.
func newServerWithConnection(conn natsConnection) *Server {
	return &Server{conn: conn}
}

// Serve subscribes to both bridge subjects and blocks until the context
// is cancelled. Malformed messages are dropped; handler failures are
// logged and, for request/reply, reported back to the caller.
func (s *Server) Serve(ctx context.Context, adjust AdjustHandler, resolve SVGHandler) error {
	subAdjust, err := s.conn.Subscribe(subjectAdjust, func(msg *nats.Msg) {
		var req adjustMessage
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Warn("dropping malformed adjust message", "error", err)
			return
		}

		if err := adjust(ctx, req.Instances); err != nil {
			slog.Error("cache limit adjustment failed",
				"correlation_id", req.CorrelationID,
				"instances", req.Instances,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subjectAdjust, err)
	}

	subSVG, err := s.conn.Subscribe(subjectSVG, func(msg *nats.Msg) {
		var resp svgResponse

		var req svgRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			resp.Error = "malformed request"
		} else if content, err := resolve(ctx, req.Ref); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Content = content
		}

		if msg.Reply == "" {
			return
		}

		data, err := json.Marshal(resp)
		if err != nil {
			slog.Error("failed to marshal svg response", "error", err)
			return
		}
		if err := s.conn.Publish(msg.Reply, data); err != nil {
			slog.Error("failed to reply to svg request", "error", err)
		}
	})
	if err != nil {
		_ = subAdjust.Unsubscribe() // Best-effort cleanup
		return fmt.Errorf("failed to subscribe to %s: %w", subjectSVG, err)
	}

	<-ctx.Done()

	_ = subAdjust.Unsubscribe() // Best-effort cleanup on shutdown
	_ = subSVG.Unsubscribe()    // Best-effort cleanup on shutdown
	return ctx.Err()
}

// Close closes the NATS connection.
func (s *Server) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
