package timing

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns a clock advancing by the given increments per call.
func fixedClock(start time.Time, increments ...time.Duration) func() time.Time {
	calls := 0
	current := start
	return func() time.Time {
		if calls > 0 && calls-1 < len(increments) {
			current = current.Add(increments[calls-1])
		}
		calls++
		return current
	}
}

func TestCollector_Record(t *testing.T) {
	c := NewCollector()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(5500 * time.Millisecond)

	c.Record(StepTranscription, StatusSuccess, start, end)

	stats := c.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, StepTranscription, stats[0].Step)
	assert.Equal(t, StatusSuccess, stats[0].Status)
	assert.Equal(t, int64(5500), stats[0].DurationMS)
	assert.Equal(t, "2024-01-01T00:00:00Z", stats[0].StartTime)
	assert.Equal(t, "2024-01-01T00:00:05.5Z", stats[0].EndTime)
}

func TestCollector_RecordsInOrder(t *testing.T) {
	c := NewCollector()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Record(StepDownload, StatusSuccess, t0, t0.Add(2*time.Second))
	c.Record(StepTranscription, StatusSuccess, t0.Add(2*time.Second), t0.Add(98*time.Second))
	c.Record(StepUploadTranscript, StatusError, t0.Add(98*time.Second), t0.Add(99*time.Second))

	stats := c.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, StepDownload, stats[0].Step)
	assert.Equal(t, StepTranscription, stats[1].Step)
	assert.Equal(t, StepUploadTranscript, stats[2].Step)
	assert.Equal(t, StatusError, stats[2].Status)
}

func TestCollector_RecordSkipped(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCollectorWithClock(func() time.Time { return now })

	c.RecordSkipped(StepAlignment)

	stats := c.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, StepAlignment, stats[0].Step)
	assert.Equal(t, StatusSkipped, stats[0].Status)
	assert.Equal(t, int64(0), stats[0].DurationMS)
	assert.Equal(t, stats[0].StartTime, stats[0].EndTime)
}

func TestCollector_StatsReturnsCopy(t *testing.T) {
	c := NewCollector()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Record(StepTranscription, StatusSuccess, t0, t0.Add(10*time.Second))

	stats1 := c.Stats()
	stats1[0].Status = StatusError

	stats2 := c.Stats()
	assert.Equal(t, StatusSuccess, stats2[0].Status)
}

func TestCollector_MeasureSuccess(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCollectorWithClock(fixedClock(t0, 1500*time.Millisecond))

	ran := false
	err := c.Measure(StepDownload, discardLogger(), func() error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)

	stats := c.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, StepDownload, stats[0].Step)
	assert.Equal(t, StatusSuccess, stats[0].Status)
	assert.Equal(t, int64(1500), stats[0].DurationMS)
}

func TestCollector_MeasurePropagatesError(t *testing.T) {
	c := NewCollector()
	boom := errors.New("s3 unreachable")

	err := c.Measure(StepDownload, discardLogger(), func() error {
		return boom
	})

	require.ErrorIs(t, err, boom)

	stats := c.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, StatusError, stats[0].Status)
}

func TestSizeof(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512B"},
		{2048, "2.0KiB"},
		{3 * 1024 * 1024, "3.0MiB"},
		{5 * 1024 * 1024 * 1024, "5.0GiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeof(tt.in))
	}
}
