// Package storage owns the uploads directory on disk. The coordination
// registries never touch file bytes; everything physical goes through here.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var ErrNotFound = errors.New("file not found")

// FileInfo describes one stored file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store persists uploaded files in a single flat directory.
type Store struct {
	dir    string
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Store{
		dir:    abs,
		logger: logger.With(slog.String("component", "file_store")),
		now:    time.Now,
	}, nil
}

// Save writes the upload under a timestamp-prefixed, sanitized name and
// returns the stored name. The prefix keeps repeated uploads of the same
// file from clobbering each other.
func (s *Store) Save(originalName string, r io.Reader) (FileInfo, error) {
	name := SanitizeFilename(originalName)
	if name == "" {
		return FileInfo{}, errors.New("empty filename after sanitization")
	}
	storedName := s.now().UTC().Format("20060102150405") + "_" + name

	path, err := s.resolve(storedName)
	if err != nil {
		return FileInfo{}, err
	}

	f, err := os.Create(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("creating %s: %w", storedName, err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return FileInfo{}, fmt.Errorf("writing %s: %w", storedName, err)
	}

	s.logger.Info("file stored", slog.String("filename", storedName), slog.Int64("bytes", size))
	return FileInfo{Name: storedName, Size: size, ModTime: s.now()}, nil
}

// List returns all stored files, newest first.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading uploads dir: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// Open returns a reader for the named file. The caller closes it.
func (s *Store) Open(name string) (*os.File, FileInfo, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, FileInfo{}, ErrNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, FileInfo{}, ErrNotFound
		}
		return nil, FileInfo{}, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, FileInfo{}, err
	}
	return f, FileInfo{Name: name, Size: stat.Size(), ModTime: stat.ModTime()}, nil
}

// Delete removes the named file from disk.
func (s *Store) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	s.logger.Info("file deleted", slog.String("filename", name))
	return nil
}

// resolve maps a stored name to an absolute path, rejecting anything that
// would escape the uploads directory.
func (s *Store) resolve(name string) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	if !strings.HasPrefix(path, s.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("name %q escapes uploads dir", name)
	}
	return path, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces an arbitrary client-supplied name to a safe flat
// filename: path components stripped, unsafe runes collapsed to underscores,
// length capped while preserving the extension when it fits.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return ""
	}
	if len(name) > 255 {
		ext := filepath.Ext(name)
		keep := 250 - len(ext)
		if keep < 1 {
			// The "extension" is the whole tail of the name; drop it
			// rather than indexing past the front.
			ext = ""
			keep = 250
		}
		name = name[:keep] + ext
	}
	return name
}
