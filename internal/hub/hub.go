// Package hub tracks live WebSocket connections and routes protocol events
// between them and the negotiation broker. It is the pub/sub transport the
// rest of the system emits through.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/mehmoodulhaq570/WifiX/internal/broker"
	"github.com/mehmoodulhaq570/WifiX/pkg/transport"
)

// Client-originated event names.
const (
	eventBecomeHost     = "become_host"
	eventRequestConnect = "request_connect"
	eventApproveRequest = "approve_request"
	eventDenyRequest    = "deny_request"
	eventStopHost       = "stop_host"
)

type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*transport.Connection

	broker *broker.Broker
	logger *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		conns:  make(map[uuid.UUID]*transport.Connection),
		logger: logger.With(slog.String("component", "hub")),
	}
}

// BindBroker wires the negotiation broker in after construction; the broker
// itself emits through this hub, so the two are built in sequence.
func (h *Hub) BindBroker(b *broker.Broker) {
	h.broker = b
}

// Register adds a connection to the fan-out set.
func (h *Hub) Register(conn *transport.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
}

// Unregister removes the connection and informs the broker, which clears
// host state and broadcasts if the departed connection was the host.
func (h *Hub) Unregister(connID uuid.UUID) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()

	if h.broker != nil {
		h.broker.OnDisconnect(connID)
	}
}

// Notify implements broker.Notifier. A Nil target broadcasts to every live
// connection; events addressed to unknown connections are dropped silently,
// mirroring a pub/sub emit to a recipient that is no longer there.
func (h *Hub) Notify(event string, data any, target uuid.UUID) error {
	if target == broker.Broadcast {
		h.mu.RLock()
		conns := make([]*transport.Connection, 0, len(h.conns))
		for _, c := range h.conns {
			conns = append(conns, c)
		}
		h.mu.RUnlock()

		var errs []error
		for _, c := range conns {
			if err := c.SendEvent(event, data); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	h.mu.RLock()
	conn, ok := h.conns[target]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("event dropped, no live recipient",
			slog.String("event", event),
			slog.String("target", target.String()),
		)
		return nil
	}
	return conn.SendEvent(event, data)
}

// HandleMessage routes one inbound client frame to the broker.
func (h *Hub) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	if !gjson.ValidBytes(msg) {
		h.logger.Warn("discarding malformed frame", slog.String("connID", connID.String()))
		return
	}
	event := gjson.GetBytes(msg, "event").String()

	switch event {
	case eventBecomeHost:
		h.broker.BecomeHost(connID)
	case eventRequestConnect:
		name := gjson.GetBytes(msg, "data.name").String()
		h.broker.RequestConnect(connID, name)
	case eventApproveRequest:
		if target, ok := h.targetSID(msg); ok {
			h.broker.Approve(connID, target)
		}
	case eventDenyRequest:
		if target, ok := h.targetSID(msg); ok {
			h.broker.Deny(connID, target)
		}
	case eventStopHost:
		h.broker.Resign(connID)
	default:
		h.logger.Warn("received unknown event",
			slog.String("event", event),
			slog.String("connID", connID.String()),
		)
	}
}

// targetSID extracts the requester id an approve/deny is aimed at.
func (h *Hub) targetSID(msg []byte) (uuid.UUID, bool) {
	raw := gjson.GetBytes(msg, "data.sid").String()
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Warn("approve/deny with unparseable sid", slog.String("sid", raw))
		return uuid.Nil, false
	}
	return id, true
}

// CloseAll terminates every live connection; used during shutdown.
func (h *Hub) CloseAll(reason error) {
	h.mu.RLock()
	conns := make([]*transport.Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close(reason)
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
