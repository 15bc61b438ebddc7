package runmetrics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndLast(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "metrics.json"))

	err := log.Record(Execution{Stage: "amazon", TotalJobs: 10, ActiveJobs: 8, Success: true})
	require.NoError(t, err)
	err = log.Record(Execution{Stage: "combine", TotalJobs: 12, Success: true})
	require.NoError(t, err)
	err = log.Record(Execution{Stage: "amazon", TotalJobs: 11, ActiveJobs: 7, Success: false, ErrorDetail: "boom"})
	require.NoError(t, err)

	last, ok := log.Last("amazon")
	require.True(t, ok)
	require.Equal(t, 11, last.TotalJobs)
	require.False(t, last.Success)

	_, ok = log.Last("theirstack")
	require.False(t, ok)
}

func TestRetention(t *testing.T) {
	log := NewLog(filepath.Join(t.TempDir(), "metrics.json"))

	old := time.Now().Add(-40 * 24 * time.Hour)
	log.Now = func() time.Time { return old }
	require.NoError(t, log.Record(Execution{Stage: "amazon", Success: true}))

	log.Now = time.Now
	require.NoError(t, log.Record(Execution{Stage: "amazon", Success: true}))

	executions, err := log.Read()
	require.NoError(t, err)
	require.Len(t, executions, 1)
}
