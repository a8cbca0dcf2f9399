package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"vidtrack/internal/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	s, err := Open(log, filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestPutGetRoundtrip(t *testing.T) {
	s := newTestStore(t)

	rec := entity.DownloadRecord{
		ID:       "abc",
		Title:    "Some Video",
		Status:   entity.StatusDownloading,
		Progress: 42.5,
		Speed:    "1.2MiB/s",
	}
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	if all[0] != rec {
		t.Errorf("got %+v, want %+v", all[0], rec)
	}
}

func TestPutOverwrites(t *testing.T) {
	s := newTestStore(t)

	rec := entity.DownloadRecord{ID: "abc", Status: entity.StatusPending}
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	rec.Status = entity.StatusCompleted
	rec.Progress = 100
	if err := s.Put(rec); err != nil {
		t.Fatalf("second Put() failed: %v", err)
	}

	all, _ := s.All()
	if len(all) != 1 || all[0].Status != entity.StatusCompleted {
		t.Errorf("expected single completed record, got %+v", all)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	s.Put(entity.DownloadRecord{ID: "abc"})
	if err := s.Delete("abc"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	all, _ := s.All()
	if len(all) != 0 {
		t.Errorf("expected empty store, got %d records", len(all))
	}

	// Deleting an unknown id is not an error.
	if err := s.Delete("ghost"); err != nil {
		t.Errorf("Delete(ghost) failed: %v", err)
	}
}

func TestResumable(t *testing.T) {
	s := newTestStore(t)

	s.Put(entity.DownloadRecord{ID: "a", Status: entity.StatusDownloading})
	s.Put(entity.DownloadRecord{ID: "b", Status: entity.StatusCompleted})
	s.Put(entity.DownloadRecord{ID: "c", Status: entity.StatusError})
	s.Put(entity.DownloadRecord{ID: "d", Status: entity.StatusPending})
	s.Put(entity.DownloadRecord{ID: "e", Status: entity.StatusError, CanRetry: true})

	got, err := s.Resumable()
	if err != nil {
		t.Fatalf("Resumable() failed: %v", err)
	}

	ids := make(map[string]bool, len(got))
	for _, rec := range got {
		ids[rec.ID] = true
	}
	if len(got) != 3 || !ids["a"] || !ids["d"] || !ids["e"] {
		t.Errorf("Resumable() = %v, want records a, d and e", got)
	}
}
