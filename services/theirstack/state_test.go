package theirstack

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackerColdStart(t *testing.T) {
	tracker := OpenTracker(filepath.Join(t.TempDir(), "state.json"))
	require.Equal(t, 0, tracker.Cursor())

	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)
	tracker.Now = func() time.Time { return now }
	require.Equal(t, now.Add(-24*time.Hour), tracker.Since("LU|", 24*time.Hour))
}

func TestTrackerCorruptStartsCold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	tracker := OpenTracker(path)
	require.Equal(t, 0, tracker.Cursor())
	require.True(t, tracker.state.LastRunTimestamp.IsZero())
}

func TestTrackerCheckpointSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	tracker := OpenTracker(path)
	require.NoError(t, tracker.CheckpointPage(3))

	reopened := OpenTracker(path)
	require.Equal(t, 3, reopened.Cursor())
}

func TestTrackerCompleteRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	now := time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC)

	tracker := OpenTracker(path)
	tracker.Now = func() time.Time { return now }
	require.NoError(t, tracker.CheckpointPage(5))
	require.NoError(t, tracker.CompleteRun("LU|sde"))

	reopened := OpenTracker(path)
	reopened.Now = func() time.Time { return now.Add(48 * time.Hour) }
	// cursor rewound, watermark is the new lower bound
	require.Equal(t, 0, reopened.Cursor())
	require.Equal(t, now, reopened.Since("LU|sde", 24*time.Hour))
	// other queries keep their own window
	require.Equal(t, now.Add(24*time.Hour), reopened.Since("DE|sde", 24*time.Hour))
}
