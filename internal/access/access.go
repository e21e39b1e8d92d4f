// Package access gates downloads behind optional per-file PINs. A correct
// PIN is remembered per (session, file) pair so a client is not re-prompted
// on every request within the same session.
package access

import (
	"log/slog"
	"sync"
)

// Outcome classifies a PIN verification attempt.
type Outcome int

const (
	// NotProtected means no PIN is registered for the file; the caller
	// proceeds without further checks.
	NotProtected Outcome = iota
	// Granted means the supplied PIN matched, or a prior match is still on
	// record for this session.
	Granted
	// Denied means the supplied PIN did not match.
	Denied
)

func (o Outcome) String() string {
	switch o {
	case NotProtected:
		return "not_protected"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	}
	return "unknown"
}

type markKey struct {
	sessionID string
	filename  string
}

// Registry maps stored file names to PINs and records which sessions have
// already verified. A single mutex spans both maps so RemoveFile is atomic
// with respect to concurrent Verify calls: a verification mark can never
// outlive the PIN entry it refers to.
type Registry struct {
	mu     sync.Mutex
	pins   map[string]string
	marks  map[markKey]struct{}
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		pins:   make(map[string]string),
		marks:  make(map[markKey]struct{}),
		logger: logger.With(slog.String("component", "file_access")),
	}
}

// RegisterPin gates filename behind pin. Files never registered here are
// open-access.
func (r *Registry) RegisterPin(filename, pin string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pins[filename] = pin
	r.logger.Info("PIN set for file", slog.String("filename", filename))
}

// IsProtected reports whether filename currently requires a PIN.
func (r *Registry) IsProtected(filename string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pins[filename]
	return ok
}

// Verify checks suppliedPin for filename on behalf of sessionID. A session
// that already verified once is granted without comparing the PIN again.
// PINs are low-entropy convenience gates; comparison is plain string
// equality and guessing is throttled elsewhere.
func (r *Registry) Verify(sessionID, filename, suppliedPin string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	pin, protected := r.pins[filename]
	if !protected {
		return NotProtected
	}

	key := markKey{sessionID: sessionID, filename: filename}
	if _, verified := r.marks[key]; verified {
		return Granted
	}

	if suppliedPin != pin {
		return Denied
	}
	r.marks[key] = struct{}{}
	return Granted
}

// RemoveFile drops the PIN entry and every verification mark for filename,
// across all sessions, in one step. Called whenever the file itself is
// deleted so no stale grant can survive.
func (r *Registry) RemoveFile(filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pins, filename)
	for key := range r.marks {
		if key.filename == filename {
			delete(r.marks, key)
		}
	}
}
