// Package rooms manages short, typable codes that map to a host's network
// endpoint so nearby devices can join without typing an IP address.
package rooms

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/mehmoodulhaq570/WifiX/pkg/registry"
)

// Codes are read aloud or typed on phones, so the alphabet drops the
// visually ambiguous glyphs O, I, 0 and 1, leaving 32 symbols.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxAttempts = 100

var (
	ErrNotFound = errors.New("room code not found")
	// ErrExhausted means no free code was found within the attempt budget,
	// which signals a pathologically full directory or a degenerate RNG.
	ErrExhausted = errors.New("failed to generate a unique room code")
)

// Endpoint is the connection target a code resolves to.
type Endpoint struct {
	Host string
	Port int
}

type roomEntry struct {
	endpoint    Endpoint
	displayName string
}

// Details is the resolved view of a room code.
type Details struct {
	Code      string    `json:"code"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ActiveCode is one row of the ListActive snapshot.
type ActiveCode struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Directory generates and resolves room codes over a TTL-bounded registry.
type Directory struct {
	codes      *registry.Expiring[string, roomEntry]
	codeLength int
	logger     *slog.Logger

	// randIndex picks an alphabet index; swappable for tests.
	randIndex func(n int) int
}

func NewDirectory(codeLength int, ttl time.Duration, logger *slog.Logger) *Directory {
	return &Directory{
		codes:      registry.NewExpiring[string, roomEntry](ttl),
		codeLength: codeLength,
		logger:     logger.With(slog.String("component", "room_directory")),
		randIndex:  rand.Intn,
	}
}

// Generate reserves a fresh code for the given endpoint. Collisions against
// live codes are retried up to the attempt budget; ErrExhausted bounds the
// worst-case latency.
func (d *Directory) Generate(endpoint Endpoint, displayName string) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := d.randomCode()
		name := displayName
		if name == "" {
			name = "Room " + code
		}
		if d.codes.PutIfAbsent(code, roomEntry{endpoint: endpoint, displayName: name}) {
			d.logger.Debug("room code generated", slog.String("code", code), slog.Int("attempts", attempt+1))
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, maxAttempts)
}

// Resolve looks up a code, tolerating case and surrounding whitespace.
func (d *Directory) Resolve(code string) (Details, error) {
	code = canonical(code)
	entry, ok := d.codes.Get(code)
	if !ok {
		return Details{}, ErrNotFound
	}
	createdAt, ok := d.codes.InsertedAt(code)
	if !ok {
		// Expired between the two reads; treat as absent.
		return Details{}, ErrNotFound
	}
	return Details{
		Code:      code,
		Host:      entry.endpoint.Host,
		Port:      entry.endpoint.Port,
		Name:      entry.displayName,
		URL:       fmt.Sprintf("http://%s:%d", entry.endpoint.Host, entry.endpoint.Port),
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(d.codes.TTL()),
	}, nil
}

// Revoke deletes a code, reporting whether one was removed.
func (d *Directory) Revoke(code string) bool {
	return d.codes.Delete(canonical(code))
}

// SweepExpired evicts all expired codes and returns the number removed.
func (d *Directory) SweepExpired() int {
	return d.codes.SweepExpired()
}

// ListActive sweeps, then returns a snapshot of the live codes sorted newest
// first. The snapshot is independent of later directory mutations.
func (d *Directory) ListActive() []ActiveCode {
	d.codes.SweepExpired()

	items := d.codes.Snapshot()
	active := make([]ActiveCode, 0, len(items))
	for _, item := range items {
		active = append(active, ActiveCode{
			Code:      item.Key,
			Name:      item.Value.displayName,
			CreatedAt: item.InsertedAt,
			ExpiresAt: item.InsertedAt.Add(d.codes.TTL()),
		})
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active
}

func (d *Directory) randomCode() string {
	b := make([]byte, d.codeLength)
	for i := range b {
		b[i] = alphabet[d.randIndex(len(alphabet))]
	}
	return string(b)
}

func canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
