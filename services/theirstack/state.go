package theirstack

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// State is the tracker's on-disk shape. The cursor records the last page
// that was fully persisted, so a crash mid-pagination resumes at cursor+1
// instead of re-buying pages already stored.
type State struct {
	LastRunTimestamp          time.Time            `json:"last_run_timestamp"`
	LastSuccessfulQueryCursor int                  `json:"last_successful_query_cursor"`
	PerQueryHighWatermark     map[string]time.Time `json:"per_query_high_watermark"`
}

type Tracker struct {
	path  string
	state State

	Now func() time.Time
}

// OpenTracker loads the state file. A missing or unreadable file is a
// cold start, never an error: worst case the next run re-fetches jobs
// the store already deduplicates.
func OpenTracker(path string) *Tracker {
	t := &Tracker{path: path, Now: time.Now}
	t.state.PerQueryHighWatermark = map[string]time.Time{}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t
	}
	if err != nil {
		slog.Warn("unreadable tracker state, starting cold", "path", path, "err", err)
		return t
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Warn("corrupt tracker state, starting cold", "path", path, "err", err)
		return t
	}
	if state.PerQueryHighWatermark == nil {
		state.PerQueryHighWatermark = map[string]time.Time{}
	}
	t.state = state
	return t
}

func (t *Tracker) Cursor() int {
	return t.state.LastSuccessfulQueryCursor
}

// Since returns the posted_at_gte lower bound for a query: the query's
// high watermark when one exists, otherwise lookback before now.
func (t *Tracker) Since(queryKey string, lookback time.Duration) time.Time {
	if mark, ok := t.state.PerQueryHighWatermark[queryKey]; ok && !mark.IsZero() {
		return mark
	}
	return t.Now().Add(-lookback)
}

// CheckpointPage persists the cursor after every fully stored page.
func (t *Tracker) CheckpointPage(page int) error {
	t.state.LastSuccessfulQueryCursor = page
	return t.save()
}

// CompleteRun advances the watermark and run timestamp and rewinds the
// cursor. Only called after a fully successful fetch: a partial run
// leaves the watermark alone so the next run re-covers the window.
func (t *Tracker) CompleteRun(queryKey string) error {
	now := t.Now().UTC()
	t.state.LastRunTimestamp = now
	t.state.PerQueryHighWatermark[queryKey] = now
	t.state.LastSuccessfulQueryCursor = 0
	return t.save()
}

func (t *Tracker) save() error {
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tracker state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".state-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing tracker state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing tracker state: %w", err)
	}
	return nil
}
