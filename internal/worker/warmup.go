package worker

import (
	"log/slog"
	"time"

	"github.com/fourTheorem/podwhisperer/internal/worker/domain"
)

// DefaultWarmupDuration applies when a warmup message has no explicit
// expiry.
const DefaultWarmupDuration = 30 * time.Minute

// WarmupTracker maintains the keep-alive expiry. The expiry only ever
// extends; a warmup message requesting an earlier expiry is ignored.
type WarmupTracker struct {
	state      *State
	defaultTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewWarmupTracker wires a tracker onto the shared worker state.
func NewWarmupTracker(state *State, logger *slog.Logger) *WarmupTracker {
	return &WarmupTracker{
		state:      state,
		defaultTTL: DefaultWarmupDuration,
		now:        time.Now,
		logger:     logger,
	}
}

// HandleMessage inspects a parsed message. For warmup messages it updates
// the expiry and returns true, telling the caller to acknowledge the
// message without running the job pipeline. Returns false otherwise.
func (t *WarmupTracker) HandleMessage(env domain.Envelope) bool {
	if env.Type != domain.MessageTypeWarmup {
		return false
	}

	candidate := t.now().Add(t.defaultTTL)
	if env.Until != "" {
		parsed, err := time.Parse(time.RFC3339, env.Until)
		if err != nil {
			t.logger.Warn("Warmup message has unparseable expiry, using default duration",
				slog.String("until", env.Until),
				slog.String("error", err.Error()),
			)
		} else {
			candidate = parsed
		}
	}

	current := t.state.KeepWarmUntil()
	if current.IsZero() || candidate.After(current) {
		t.state.setKeepWarmUntil(candidate)
		t.logger.Info("Warmup updated, keeping worker warm",
			slog.Time("until", candidate),
		)
	} else {
		t.logger.Info("Warmup message ignored, current warmup period extends beyond requested time",
			slog.Time("current", current),
			slog.Time("requested", candidate),
		)
	}

	return true
}

// IsActive reports whether the warmup period covers the given instant.
func (t *WarmupTracker) IsActive(now time.Time) bool {
	until := t.state.KeepWarmUntil()
	return !until.IsZero() && now.Before(until)
}

// Until returns the tracked expiry, zero if never set.
func (t *WarmupTracker) Until() time.Time {
	return t.state.KeepWarmUntil()
}
