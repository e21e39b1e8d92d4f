// Package broker implements the host/peer connection-negotiation protocol:
// one connection may hold host status at a time, and connect requests from
// other peers are relayed to it for an approve/deny decision.
package broker

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Broadcast is the Notify target that addresses every connected peer.
var Broadcast = uuid.Nil

// Notifier is the outbound pub/sub capability the broker emits through.
// Delivery is fire-and-forget; the broker never retries and never lets an
// emission failure undo a state change.
type Notifier interface {
	Notify(event string, data any, target uuid.UUID) error
}

// Event names on the wire. The file lifecycle notifications are emitted by
// the upload handlers and the sweeper over the same pub/sub surface.
const (
	EventHostStatus      = "host_status"
	EventIncomingRequest = "incoming_request"
	EventRequestApproved = "request_approved"
	EventRequestDenied   = "request_denied"
	EventFileUploaded    = "file_uploaded"
	EventFileDeleted     = "file_deleted"
)

type HostStatus struct {
	Available bool `json:"available"`
}

type IncomingRequest struct {
	SID  string `json:"sid"`
	Name string `json:"name,omitempty"`
}

type RequestDecision struct {
	By     string `json:"by,omitempty"`
	Reason string `json:"reason,omitempty"`
}

const ReasonNoHost = "no_host"

// Broker tracks the single current host connection and relays negotiation
// events between peers and the host.
type Broker struct {
	mu     sync.Mutex
	hostID uuid.UUID // uuid.Nil when no host is registered

	notifier Notifier
	logger   *slog.Logger
}

func New(notifier Notifier, logger *slog.Logger) *Broker {
	return &Broker{
		notifier: notifier,
		logger:   logger.With(slog.String("component", "broker")),
	}
}

// BecomeHost registers connID as the host. A prior host is silently
// overwritten: last writer wins, the displaced host is not notified.
func (b *Broker) BecomeHost(connID uuid.UUID) {
	b.mu.Lock()
	prev := b.hostID
	b.hostID = connID
	b.mu.Unlock()

	if prev != uuid.Nil && prev != connID {
		b.logger.Warn("host replaced", slog.String("prev", prev.String()), slog.String("new", connID.String()))
	}
	b.emit(EventHostStatus, HostStatus{Available: true}, connID)
}

// RequestConnect relays a connect request from requesterID to the current
// host, or denies it synchronously when no host is registered.
func (b *Broker) RequestConnect(requesterID uuid.UUID, displayName string) {
	b.mu.Lock()
	host := b.hostID
	b.mu.Unlock()

	if host == uuid.Nil {
		b.emit(EventRequestDenied, RequestDecision{Reason: ReasonNoHost}, requesterID)
		return
	}
	b.emit(EventIncomingRequest, IncomingRequest{SID: requesterID.String(), Name: displayName}, host)
}

// Approve relays the host's approval to the requester. No check is made that
// the target ever issued a request; events to unknown connections are dropped
// by the transport.
func (b *Broker) Approve(hostID, targetID uuid.UUID) {
	b.emit(EventRequestApproved, RequestDecision{By: hostID.String()}, targetID)
}

// Deny relays the host's denial to the requester.
func (b *Broker) Deny(hostID, targetID uuid.UUID) {
	b.emit(EventRequestDenied, RequestDecision{By: hostID.String()}, targetID)
}

// OnDisconnect clears host status if the departing connection was the host
// and broadcasts the loss to all peers. Non-host disconnects are no-ops.
func (b *Broker) OnDisconnect(connID uuid.UUID) {
	if b.clearIfHost(connID) {
		b.emit(EventHostStatus, HostStatus{Available: false}, Broadcast)
	}
}

// Resign is the explicit counterpart of OnDisconnect, triggered by the host
// itself rather than by transport teardown.
func (b *Broker) Resign(connID uuid.UUID) {
	if b.clearIfHost(connID) {
		b.emit(EventHostStatus, HostStatus{Available: false}, Broadcast)
	}
}

// HostID returns the current host connection, or uuid.Nil if none.
func (b *Broker) HostID() uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hostID
}

func (b *Broker) clearIfHost(connID uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hostID != connID || b.hostID == uuid.Nil {
		return false
	}
	b.hostID = uuid.Nil
	return true
}

// emit delivers best-effort. State is already committed by the time emit
// runs, so failures are logged and swallowed.
func (b *Broker) emit(event string, data any, target uuid.UUID) {
	if err := b.notifier.Notify(event, data, target); err != nil {
		b.logger.Warn("event emission failed", slog.String("event", event), slog.Any("error", err))
	}
}
