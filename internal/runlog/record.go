// Package runlog persists a local history of per-server pass
// outcomes. It is a diagnostic record for the operator only: the
// rolling engine never reads it, so every pass still works from
// state fetched fresh from the provider.
package runlog

import (
	"time"

	"imageroller/internal/roller"
)

// Entry is one persisted per-server pass outcome.
type Entry struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	ServerID      string    `json:"server_id"`
	ServerName    string    `json:"server_name"`
	Outcome       string    `json:"outcome"`
	CreatedImage  string    `json:"created_image,omitempty"`
	DeletedCount  int       `json:"deleted_count"`
	FailedDeletes int       `json:"failed_deletes"`
	Detail        string    `json:"detail,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
}

// FromResult converts one pass result into a persistable entry.
func FromResult(runID string, ts time.Time, res roller.RunResult) Entry {
	entry := Entry{
		RunID:         runID,
		Timestamp:     ts,
		ServerID:      res.ServerID,
		ServerName:    res.ServerName,
		Outcome:       string(res.Classification),
		DeletedCount:  res.DeletedCount(),
		FailedDeletes: len(res.FailedDeletions()),
		DurationMs:    res.Duration.Milliseconds(),
	}
	if res.Created != nil {
		entry.CreatedImage = res.Created.ID
	}
	if err := res.Error(); err != nil {
		entry.Detail = err.Error()
	}
	return entry
}
