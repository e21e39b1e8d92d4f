// Package sweeper runs the periodic eviction pass: expired room codes and
// session state every cycle, and stale uploads when file TTL cleanup is
// enabled.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mehmoodulhaq570/WifiX/internal/broker"
	"github.com/mehmoodulhaq570/WifiX/internal/storage"
)

// FileStore is the slice of the durable store the sweeper consumes.
type FileStore interface {
	List() ([]storage.FileInfo, error)
	Delete(name string) error
}

// AccessRegistry is the slice of the file-access registry the sweeper
// consumes: state removal that must accompany every file deletion.
type AccessRegistry interface {
	RemoveFile(filename string)
}

// ExpirySweeper is any TTL registry that can evict its expired entries.
type ExpirySweeper interface {
	SweepExpired() int
}

type FileDeleted struct {
	Filename string `json:"filename"`
}

type Sweeper struct {
	rooms    ExpirySweeper
	sessions ExpirySweeper
	store    FileStore
	access   AccessRegistry
	notifier broker.Notifier

	fileTTL  time.Duration // 0 disables file cleanup
	interval time.Duration
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func New(rooms, sessions ExpirySweeper, store FileStore, access AccessRegistry, notifier broker.Notifier, fileTTL, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		rooms:    rooms,
		sessions: sessions,
		store:    store,
		access:   access,
		notifier: notifier,
		fileTTL:  fileTTL,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
		now:      time.Now,
	}
}

// Run loops until ctx is cancelled. Individual failures never stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started",
		slog.Duration("interval", s.interval),
		slog.Bool("fileCleanup", s.fileTTL > 0),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one eviction cycle.
func (s *Sweeper) Sweep() {
	if n := s.rooms.SweepExpired(); n > 0 {
		s.logger.Info("expired room codes evicted", slog.Int("count", n))
	}
	if n := s.sessions.SweepExpired(); n > 0 {
		s.logger.Info("expired sessions evicted", slog.Int("count", n))
	}
	if s.fileTTL > 0 {
		s.sweepFiles()
	}
}

func (s *Sweeper) sweepFiles() {
	files, err := s.store.List()
	if err != nil {
		s.logger.Error("file sweep: listing store failed", slog.Any("error", err))
		return
	}

	cutoff := s.now().Add(-s.fileTTL)
	for _, f := range files {
		if !f.ModTime.Before(cutoff) {
			continue
		}
		// Per-file errors (permissions, races with explicit deletion) are
		// skipped; the next file and the next cycle proceed regardless.
		if err := s.store.Delete(f.Name); err != nil {
			s.logger.Warn("file sweep: delete failed",
				slog.String("filename", f.Name),
				slog.Any("error", err),
			)
			continue
		}
		// Access state goes in the same logical step as the file so no
		// orphaned PIN entry or stale mark remains.
		s.access.RemoveFile(f.Name)
		if err := s.notifier.Notify(broker.EventFileDeleted, FileDeleted{Filename: f.Name}, uuid.Nil); err != nil {
			s.logger.Warn("file sweep: notify failed", slog.Any("error", err))
		}
		s.logger.Info("stale file removed", slog.String("filename", f.Name))
	}
}
