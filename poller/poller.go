// Package poller drives a submitted session to a terminal status by
// re-querying upstream at a fixed interval with a hard attempt ceiling.
// There is no backoff: the budget is attempts * interval, full stop.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/veralens/veralensbackend/models"
)

const (
	// DefaultInterval is the fixed delay between status checks.
	DefaultInterval = 2 * time.Second

	// DefaultMaxAttempts caps the number of status checks. Together with
	// DefaultInterval this gives a ~120s wall-clock budget.
	DefaultMaxAttempts = 60
)

// Terminal outcomes callers branch on with errors.Is.
var (
	ErrTimeout          = errors.New("poller: processing timeout exceeded")
	ErrProcessingFailed = errors.New("poller: processing failed")
)

// State is the UI-facing projection of the poll loop.
type State string

const (
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateResults    State = "results"
	StateError      State = "error"
)

// StateFor projects an upstream status onto the UI-facing state set.
func StateFor(status models.Status) State {
	switch status {
	case models.StatusUploading:
		return StateUploading
	case models.StatusCompleted, models.StatusDone, models.StatusNoFacesFound:
		return StateResults
	case models.StatusFailed:
		return StateError
	default:
		return StateProcessing
	}
}

// StatusFunc queries the current status of a session.
type StatusFunc func(ctx context.Context, id string) (models.Status, error)

// Poller repeatedly checks a session's status until it is terminal or the
// attempt budget runs out. Sleep is injectable so tests can simulate the
// full budget without wall-clock delay.
type Poller struct {
	Status      StatusFunc
	Interval    time.Duration
	MaxAttempts int
	Sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a poller with the default interval and attempt budget.
func New(status StatusFunc) *Poller {
	return &Poller{
		Status:      status,
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
		Sleep:       sleepContext,
	}
}

// Wait polls until the session reaches a terminal status and returns it.
// It returns ErrProcessingFailed for a terminal "failed" status (alongside
// the status itself), and ErrTimeout once MaxAttempts checks have all come
// back non-terminal. Exactly MaxAttempts checks are issued, never one more.
func (p *Poller) Wait(ctx context.Context, id string) (models.Status, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := p.Status(ctx, id)
		if err != nil {
			return "", err
		}
		if status.IsTerminal() {
			if status == models.StatusFailed {
				return status, ErrProcessingFailed
			}
			return status, nil
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			return "", err
		}
	}
	return "", ErrTimeout
}

// sleepContext sleeps for d unless the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
