package runlog

import (
	"path/filepath"
	"testing"
	"time"
)

func tempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenAt(filepath.Join(t.TempDir(), "runlog.db"))
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAssignsID(t *testing.T) {
	repo := tempRepo(t)

	entry := &Entry{
		RunID:        "run-1",
		ServerID:     "42",
		ServerName:   "web-1",
		Outcome:      "success",
		CreatedImage: "9001",
		DeletedCount: 2,
		DurationMs:   1500,
	}
	if err := repo.Save(entry); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if entry.ID == 0 {
		t.Error("expected non-zero ID after save")
	}
	if entry.Timestamp.IsZero() {
		t.Error("expected timestamp to be set on save")
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	repo := tempRepo(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := &Entry{
			RunID:     "run-1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			ServerID:  "42",
			Outcome:   "success",
		}
		if err := repo.Save(entry); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	entries, err := repo.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Timestamp.After(entries[1].Timestamp) {
		t.Errorf("expected newest first, got %v then %v", entries[0].Timestamp, entries[1].Timestamp)
	}
}

func TestListByServerFilters(t *testing.T) {
	repo := tempRepo(t)

	for _, serverID := range []string{"42", "99", "42"} {
		entry := &Entry{RunID: "run-1", ServerID: serverID, Outcome: "success"}
		if err := repo.Save(entry); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	entries, err := repo.ListByServer("42", 10)
	if err != nil {
		t.Fatalf("ListByServer: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for server 42, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.ServerID != "42" {
			t.Errorf("unexpected server id %q in filtered list", entry.ServerID)
		}
	}
}

func TestPruneRemovesOldEntries(t *testing.T) {
	repo := tempRepo(t)

	old := &Entry{
		RunID:     "run-old",
		Timestamp: time.Now().UTC().Add(-48 * time.Hour),
		ServerID:  "42",
		Outcome:   "failure",
	}
	recent := &Entry{RunID: "run-new", ServerID: "42", Outcome: "success"}
	for _, entry := range []*Entry{old, recent} {
		if err := repo.Save(entry); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	removed, err := repo.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 entry pruned, got %d", removed)
	}

	entries, err := repo.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "run-new" {
		t.Errorf("expected only the recent entry to survive, got %+v", entries)
	}
}

func TestRoundTripPreservesFields(t *testing.T) {
	repo := tempRepo(t)

	entry := &Entry{
		RunID:         "run-7",
		Timestamp:     time.Date(2026, 8, 2, 9, 30, 0, 123456000, time.UTC),
		ServerID:      "42",
		ServerName:    "db-1",
		Outcome:       "partial_failure",
		CreatedImage:  "555",
		DeletedCount:  3,
		FailedDeletes: 1,
		Detail:        "delete image 12: conflict",
		DurationMs:    950,
	}
	if err := repo.Save(entry); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := repo.List(1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.RunID != entry.RunID || got.ServerName != entry.ServerName ||
		got.Outcome != entry.Outcome || got.CreatedImage != entry.CreatedImage ||
		got.DeletedCount != entry.DeletedCount || got.FailedDeletes != entry.FailedDeletes ||
		got.Detail != entry.Detail || got.DurationMs != entry.DurationMs {
		t.Errorf("round trip mismatch: got %+v want %+v", got, *entry)
	}
	if !got.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("timestamp mismatch: got %v want %v", got.Timestamp, entry.Timestamp)
	}
}
