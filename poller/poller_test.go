package poller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veralens/veralensbackend/models"
)

// fakeClock records sleeps instead of performing them.
type fakeClock struct {
	sleeps []time.Duration
	err    error
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.sleeps = append(c.sleeps, d)
	return nil
}

func newTestPoller(status StatusFunc, clock *fakeClock) *Poller {
	p := New(status)
	p.Sleep = clock.sleep
	return p
}

func TestWaitReturnsOnTerminalStatus(t *testing.T) {
	tests := []struct {
		name     string
		sequence []models.Status
		want     models.Status
	}{
		{"completed", []models.Status{models.StatusProcessing, models.StatusProcessing, models.StatusCompleted}, models.StatusCompleted},
		{"done spelling", []models.Status{models.StatusUploading, models.StatusDone}, models.StatusDone},
		{"no faces found", []models.Status{models.StatusProcessing, models.StatusNoFacesFound}, models.StatusNoFacesFound},
		{"immediately terminal", []models.Status{models.StatusCompleted}, models.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			clock := &fakeClock{}
			p := newTestPoller(func(ctx context.Context, id string) (models.Status, error) {
				require.Less(t, calls, len(tt.sequence), "polled past the scripted sequence")
				s := tt.sequence[calls]
				calls++
				return s, nil
			}, clock)

			status, err := p.Wait(context.Background(), "session-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, len(tt.sequence), calls)
			// one sleep between each pair of checks, none after the last
			assert.Len(t, clock.sleeps, len(tt.sequence)-1)
		})
	}
}

func TestWaitFailedStatus(t *testing.T) {
	clock := &fakeClock{}
	p := newTestPoller(func(ctx context.Context, id string) (models.Status, error) {
		return models.StatusFailed, nil
	}, clock)

	status, err := p.Wait(context.Background(), "session-1")
	require.ErrorIs(t, err, ErrProcessingFailed)
	assert.Equal(t, models.StatusFailed, status)
}

func TestWaitTimeoutAfterExactBudget(t *testing.T) {
	calls := 0
	clock := &fakeClock{}
	p := newTestPoller(func(ctx context.Context, id string) (models.Status, error) {
		calls++
		return models.StatusProcessing, nil
	}, clock)

	_, err := p.Wait(context.Background(), "session-1")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, DefaultMaxAttempts, calls, "must check exactly the attempt budget, never more")
	assert.Len(t, clock.sleeps, DefaultMaxAttempts-1, "no sleep after the final check")
	for _, d := range clock.sleeps {
		assert.Equal(t, DefaultInterval, d)
	}
}

func TestWaitCustomBudget(t *testing.T) {
	calls := 0
	clock := &fakeClock{}
	p := newTestPoller(func(ctx context.Context, id string) (models.Status, error) {
		calls++
		return models.StatusInProgress, nil
	}, clock)
	p.MaxAttempts = 5
	p.Interval = 10 * time.Millisecond

	_, err := p.Wait(context.Background(), "session-1")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 5, calls)
	require.Len(t, clock.sleeps, 4)
	assert.Equal(t, 10*time.Millisecond, clock.sleeps[0])
}

func TestWaitPropagatesStatusError(t *testing.T) {
	boom := fmt.Errorf("upstream unreachable")
	clock := &fakeClock{}
	p := newTestPoller(func(ctx context.Context, id string) (models.Status, error) {
		return "", boom
	}, clock)

	_, err := p.Wait(context.Background(), "session-1")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, clock.sleeps)
}

func TestWaitStopsWhenSleepCancelled(t *testing.T) {
	clock := &fakeClock{err: context.Canceled}
	p := newTestPoller(func(ctx context.Context, id string) (models.Status, error) {
		return models.StatusProcessing, nil
	}, clock)

	_, err := p.Wait(context.Background(), "session-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateFor(t *testing.T) {
	tests := []struct {
		status models.Status
		want   State
	}{
		{models.StatusUploading, StateUploading},
		{models.StatusProcessing, StateProcessing},
		{models.StatusInProgress, StateProcessing},
		{models.Status("queued"), StateProcessing},
		{models.StatusCompleted, StateResults},
		{models.StatusDone, StateResults},
		{models.StatusNoFacesFound, StateResults},
		{models.StatusFailed, StateError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StateFor(tt.status), "status %q", tt.status)
	}
}
