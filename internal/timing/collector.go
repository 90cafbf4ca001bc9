// Package timing records per-job pipeline stage outcomes in order.
package timing

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Step identifies one pipeline stage.
type Step string

// Pipeline stages, in execution order. The names are part of the callback
// payload contract.
const (
	StepDownload         Step = "download_s3"
	StepValidateAudio    Step = "validate_audio"
	StepConvertToWav     Step = "convert_to_wav"
	StepLoadModel        Step = "load_whisper_model"
	StepLoadAudio        Step = "load_audio"
	StepTranscription    Step = "transcription"
	StepLoadAlignModel   Step = "load_align_model"
	StepAlignment        Step = "alignment"
	StepLoadDiarizeModel Step = "load_diarize_model"
	StepDiarization      Step = "diarization"
	StepUploadTranscript Step = "upload_raw_transcript"
)

// Step statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// StepTiming is one recorded stage outcome.
type StepTiming struct {
	Step       Step   `json:"step"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// Collector accumulates stage timings for a single job. Create a fresh
// Collector at the start of every job so entries never leak across jobs.
// Not safe for concurrent use; one pipeline runs at a time.
type Collector struct {
	timings []StepTiming
	now     func() time.Time
}

// NewCollector returns an empty collector using the wall clock.
func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// NewCollectorWithClock returns an empty collector with an injected clock.
func NewCollectorWithClock(now func() time.Time) *Collector {
	return &Collector{now: now}
}

// Record appends one stage outcome with an integer millisecond duration.
func (c *Collector) Record(step Step, status string, start, end time.Time) {
	c.timings = append(c.timings, StepTiming{
		Step:       step,
		Status:     status,
		DurationMS: end.Sub(start).Milliseconds(),
		StartTime:  start.UTC().Format(time.RFC3339Nano),
		EndTime:    end.UTC().Format(time.RFC3339Nano),
	})
}

// RecordSkipped appends a zero-duration entry for a stage that did not run.
func (c *Collector) RecordSkipped(step Step) {
	now := c.now()
	c.Record(step, StatusSkipped, now, now)
}

// Stats returns a snapshot of the recorded timings. Mutating the returned
// slice does not affect the collector.
func (c *Collector) Stats() []StepTiming {
	out := make([]StepTiming, len(c.timings))
	copy(out, c.timings)
	return out
}

// Measure runs fn as one stage, logs START/END lines with memory usage, and
// records the outcome. A failure inside fn is recorded as "error" and
// returned unchanged; measurement never suppresses the underlying failure.
func (c *Collector) Measure(step Step, logger *slog.Logger, fn func() error) error {
	start := c.now()
	logger.Info("Step started",
		slog.String("step", string(step)),
		slog.String("mem", heapInUse()),
	)

	err := fn()
	end := c.now()

	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	c.Record(step, status, start, end)

	logger.Info("Step finished",
		slog.String("step", string(step)),
		slog.String("status", status),
		slog.Duration("took", end.Sub(start)),
		slog.String("mem", heapInUse()),
	)

	return err
}

// heapInUse formats the current heap usage in human units.
func heapInUse() string {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return sizeof(ms.HeapInuse)
}

func sizeof(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
