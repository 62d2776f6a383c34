package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSchedulerRunsImmediateJobsAndSurvivesFailures(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var immediate, failing, panicking atomic.Int32

	s.Every("immediate", time.Hour, true, func(context.Context) error {
		immediate.Add(1)
		return nil
	})
	s.Every("failing", 10*time.Millisecond, false, func(context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	})
	s.Every("panicking", 10*time.Millisecond, false, func(context.Context) error {
		panicking.Add(1)
		panic("bad job")
	})
	s.Every("disabled", 0, true, func(context.Context) error {
		t.Error("job with zero interval must not run")
		return nil
	})

	s.Start(context.Background())
	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		return failing.Load() >= 3 && panicking.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), immediate.Load())
	stopped := failing.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, failing.Load(), "no runs after Stop")
}

func TestSchedulerStopsWithContext(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var runs atomic.Int32
	s.Every("tick", 5*time.Millisecond, false, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, time.Second, time.Millisecond)
	cancel()
	s.Stop()
}

func TestSchedulerSkipsRunsWhileBusy(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	var running, peak, runs atomic.Int32
	s.Every("slow", 5*time.Millisecond, true, func(context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		runs.Add(1)
		time.Sleep(30 * time.Millisecond)
		return nil
	})

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), peak.Load(), "runs never overlap")
}
