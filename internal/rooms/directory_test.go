package rooms

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestDirectory(ttl time.Duration) *Directory {
	return NewDirectory(6, ttl, newTestLogger())
}

func TestGenerateAndResolve(t *testing.T) {
	d := newTestDirectory(time.Hour)

	code, err := d.Generate(Endpoint{Host: "192.168.1.10", Port: 5000}, "Living Room")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}
	for _, c := range code {
		if !strings.ContainsRune(alphabet, c) {
			t.Errorf("code %q contains out-of-alphabet rune %q", code, c)
		}
	}

	details, err := d.Resolve(code)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if details.Host != "192.168.1.10" || details.Port != 5000 {
		t.Errorf("resolved endpoint = %s:%d", details.Host, details.Port)
	}
	if details.Name != "Living Room" {
		t.Errorf("resolved name = %q", details.Name)
	}
	if details.URL != "http://192.168.1.10:5000" {
		t.Errorf("resolved url = %q", details.URL)
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	d := newTestDirectory(time.Hour)
	code, err := d.Generate(Endpoint{Host: "10.0.0.2", Port: 8080}, "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := d.Resolve("  " + strings.ToLower(code) + " "); err != nil {
		t.Errorf("Resolve of lowercased, padded code failed: %v", err)
	}
}

func TestDefaultDisplayName(t *testing.T) {
	d := newTestDirectory(time.Hour)
	code, _ := d.Generate(Endpoint{Host: "10.0.0.2", Port: 8080}, "")

	details, err := d.Resolve(code)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if details.Name != "Room "+code {
		t.Errorf("default name = %q, want %q", details.Name, "Room "+code)
	}
}

func TestActiveCodesArePairwiseDistinct(t *testing.T) {
	d := newTestDirectory(time.Hour)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := d.Generate(Endpoint{Host: "10.0.0.2", Port: 8080}, "")
		if err != nil {
			t.Fatalf("Generate #%d failed: %v", i, err)
		}
		if seen[code] {
			t.Fatalf("duplicate active code %q", code)
		}
		seen[code] = true
	}
}

func TestGenerateExhaustion(t *testing.T) {
	d := newTestDirectory(time.Hour)
	// Degenerate RNG: every draw produces the same code.
	d.randIndex = func(int) int { return 0 }

	if _, err := d.Generate(Endpoint{}, ""); err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	_, err := d.Generate(Endpoint{}, "")
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Generate with degenerate RNG = %v, want ErrExhausted", err)
	}
}

func TestExpiryAndSweep(t *testing.T) {
	d := newTestDirectory(30 * time.Millisecond)
	code, _ := d.Generate(Endpoint{Host: "10.0.0.2", Port: 8080}, "")

	if _, err := d.Resolve(code); err != nil {
		t.Fatalf("Resolve before expiry failed: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := d.Resolve(code); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve after expiry = %v, want ErrNotFound", err)
	}
	// The lazy eviction above already removed it; a second code exercises
	// the sweep path.
	d.Generate(Endpoint{}, "")
	time.Sleep(40 * time.Millisecond)
	if n := d.SweepExpired(); n != 1 {
		t.Errorf("sweep removed %d codes, want 1", n)
	}
	if n := d.SweepExpired(); n != 0 {
		t.Errorf("repeat sweep removed %d codes, want 0", n)
	}
}

func TestRevoke(t *testing.T) {
	d := newTestDirectory(time.Hour)
	code, _ := d.Generate(Endpoint{Host: "10.0.0.2", Port: 8080}, "")

	if !d.Revoke(strings.ToLower(code)) {
		t.Error("Revoke of live code returned false")
	}
	if d.Revoke(code) {
		t.Error("Revoke of absent code returned true")
	}
	if _, err := d.Resolve(code); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve after Revoke = %v, want ErrNotFound", err)
	}
}

func TestListActiveNewestFirst(t *testing.T) {
	d := newTestDirectory(time.Hour)
	first, _ := d.Generate(Endpoint{}, "first")
	time.Sleep(5 * time.Millisecond)
	second, _ := d.Generate(Endpoint{}, "second")

	active := d.ListActive()
	if len(active) != 2 {
		t.Fatalf("ListActive returned %d codes, want 2", len(active))
	}
	if active[0].Code != second || active[1].Code != first {
		t.Errorf("ListActive order = [%s %s], want newest first", active[0].Code, active[1].Code)
	}
	if !active[0].ExpiresAt.Equal(active[0].CreatedAt.Add(time.Hour)) {
		t.Error("ExpiresAt does not match CreatedAt + TTL")
	}
}

func TestConcurrentGenerate(t *testing.T) {
	d := newTestDirectory(time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := d.Generate(Endpoint{Host: "10.0.0.2", Port: 8080}, "")
			if err != nil {
				t.Errorf("Generate failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[code] {
				t.Errorf("duplicate code %q from concurrent Generate", code)
			}
			seen[code] = true
		}()
	}
	wg.Wait()
}
