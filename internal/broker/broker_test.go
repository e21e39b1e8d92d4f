package broker_test

import (
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/mehmoodulhaq570/WifiX/internal/broker"
)

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	event  string
	data   any
	target uuid.UUID
}

func (n *recordingNotifier) Notify(event string, data any, target uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event: event, data: data, target: target})
	return nil
}

func (n *recordingNotifier) recorded() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]recordedEvent, len(n.events))
	copy(out, n.events)
	return out
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestBroker() (*broker.Broker, *recordingNotifier) {
	n := &recordingNotifier{}
	return broker.New(n, newTestLogger()), n
}

func TestBecomeHostLastWriterWins(t *testing.T) {
	b, n := newTestBroker()
	a, c := uuid.New(), uuid.New()

	b.BecomeHost(a)
	b.BecomeHost(c)

	if b.HostID() != c {
		t.Fatalf("HostID = %v, want %v", b.HostID(), c)
	}

	// A connect request now routes only to the second host.
	requester := uuid.New()
	b.RequestConnect(requester, "Alice")

	events := n.recorded()
	last := events[len(events)-1]
	if last.event != broker.EventIncomingRequest || last.target != c {
		t.Errorf("request routed as %+v, want incoming_request to %v", last, c)
	}
	req, ok := last.data.(broker.IncomingRequest)
	if !ok || req.SID != requester.String() || req.Name != "Alice" {
		t.Errorf("incoming request payload = %+v", last.data)
	}
}

func TestRequestConnectNoHost(t *testing.T) {
	b, n := newTestBroker()
	requester := uuid.New()

	b.RequestConnect(requester, "")

	events := n.recorded()
	if len(events) != 1 {
		t.Fatalf("emitted %d events, want exactly 1", len(events))
	}
	if events[0].event != broker.EventRequestDenied || events[0].target != requester {
		t.Errorf("got %+v, want request_denied to requester", events[0])
	}
	dec := events[0].data.(broker.RequestDecision)
	if dec.Reason != broker.ReasonNoHost {
		t.Errorf("denial reason = %q, want %q", dec.Reason, broker.ReasonNoHost)
	}
}

func TestApproveAndDenyRelay(t *testing.T) {
	b, n := newTestBroker()
	host, target := uuid.New(), uuid.New()
	b.BecomeHost(host)

	b.Approve(host, target)
	b.Deny(host, target)

	events := n.recorded()
	approve := events[len(events)-2]
	deny := events[len(events)-1]

	if approve.event != broker.EventRequestApproved || approve.target != target {
		t.Errorf("approve relayed as %+v", approve)
	}
	if deny.event != broker.EventRequestDenied || deny.target != target {
		t.Errorf("deny relayed as %+v", deny)
	}
	if by := approve.data.(broker.RequestDecision).By; by != host.String() {
		t.Errorf("approval attributed to %q, want host", by)
	}
}

func TestHostDepartureBroadcast(t *testing.T) {
	b, n := newTestBroker()
	host := uuid.New()
	b.BecomeHost(host)

	b.OnDisconnect(host)

	if b.HostID() != uuid.Nil {
		t.Error("host state not cleared on disconnect")
	}

	broadcasts := 0
	for _, ev := range n.recorded() {
		if ev.event == broker.EventHostStatus && ev.target == broker.Broadcast {
			broadcasts++
			if ev.data.(broker.HostStatus).Available {
				t.Error("departure broadcast reported host as available")
			}
		}
	}
	if broadcasts != 1 {
		t.Errorf("host departure produced %d broadcasts, want exactly 1", broadcasts)
	}
}

func TestNonHostDisconnectIsNoOp(t *testing.T) {
	b, n := newTestBroker()
	host := uuid.New()
	b.BecomeHost(host)
	before := len(n.recorded())

	b.OnDisconnect(uuid.New())

	if b.HostID() != host {
		t.Error("non-host disconnect cleared host state")
	}
	if len(n.recorded()) != before {
		t.Error("non-host disconnect emitted events")
	}
}

func TestResignClearsHost(t *testing.T) {
	b, _ := newTestBroker()
	host := uuid.New()
	b.BecomeHost(host)

	// Resigning a non-host connection changes nothing.
	b.Resign(uuid.New())
	if b.HostID() != host {
		t.Fatal("resign by non-host cleared host state")
	}

	b.Resign(host)
	if b.HostID() != uuid.Nil {
		t.Error("resign by host did not clear host state")
	}
}

func TestConcurrentHostClaims(t *testing.T) {
	b, _ := newTestBroker()
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 50)
	for i := range ids {
		ids[i] = uuid.New()
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			b.BecomeHost(id)
		}(id)
	}
	wg.Wait()

	// Whoever won, the state must be exactly one of the claimants.
	winner := b.HostID()
	found := false
	for _, id := range ids {
		if id == winner {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("HostID %v is not one of the claimants", winner)
	}
}
