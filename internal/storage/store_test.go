package storage_test

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mehmoodulhaq570/WifiX/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	s, err := storage.NewStore(t.TempDir(), slog.New(handler))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestSaveListDelete(t *testing.T) {
	s := newTestStore(t)

	info, err := s.Save("report.pdf", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(info.Name, "_report.pdf") {
		t.Errorf("stored name %q lacks timestamp prefix", info.Name)
	}
	if info.Size != int64(len("content")) {
		t.Errorf("stored size = %d", info.Size)
	}

	files, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 1 || files[0].Name != info.Name {
		t.Errorf("List = %+v, want the saved file", files)
	}

	if err := s.Delete(info.Name); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(info.Name); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Open("nope.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Open of missing file = %v, want ErrNotFound", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Open("../../etc/passwd"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("traversal Open = %v, want ErrNotFound", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"my file (1).txt", "my_file_1_.txt"},
		{"..\\..\\win.ini", "win.ini"},
		{"...", ""},
	}
	for _, c := range cases {
		if got := storage.SanitizeFilename(c.in); got != c.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeFilenameLengthCap(t *testing.T) {
	cases := []struct {
		desc string
		in   string
	}{
		{"long stem, short ext", strings.Repeat("a", 300) + ".txt"},
		{"ext longer than the cap", "b." + strings.Repeat("c", 300)},
		{"no ext at all", strings.Repeat("d", 400)},
	}
	for _, c := range cases {
		got := storage.SanitizeFilename(c.in)
		if got == "" {
			t.Errorf("%s: sanitized to empty", c.desc)
		}
		if len(got) > 255 {
			t.Errorf("%s: len = %d, want <= 255", c.desc, len(got))
		}
	}
	if got := storage.SanitizeFilename(strings.Repeat("a", 300) + ".txt"); !strings.HasSuffix(got, ".txt") {
		t.Errorf("long stem lost its extension: %q", got)
	}
}
