package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"neonote/internal/domain/job"
)

func newTestPoller(t *testing.T, gw StatusFetcher, interval time.Duration, maxAttempts int, reporter Reporter) (*Registry, *Poller) {
	t.Helper()
	registry := NewRegistry()
	poller := NewPoller(gw, registry, PollerOptions{Interval: interval, MaxAttempts: maxAttempts, Reporter: reporter}, zerolog.Nop())
	t.Cleanup(poller.Stop)
	return registry, poller
}

func TestPollerStopsOnCompleted(t *testing.T) {
	gw := &fakeGateway{status: func(ctx context.Context, id string, call int) (job.Report, error) {
		if call < 3 {
			return job.Report{ID: id, Status: job.StatusProcessing}, nil
		}
		return job.Report{ID: id, Status: job.StatusCompleted, Output: &job.Output{VideoURL: "v"}}, nil
	}}
	registry, poller := newTestPoller(t, gw, 5*time.Millisecond, 30, nil)

	gen, _ := registry.Upsert(newJob("a", job.StatusProcessing, time.Now()))
	require.True(t, poller.Track("a", gen))

	require.Eventually(t, func() bool { return !poller.Active("a") }, time.Second, time.Millisecond)

	got, err := registry.Get("a")
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, got.Status)
	require.Equal(t, "v", got.Output.VideoURL)
	require.Equal(t, job.HintNone, got.Hint)
	require.Equal(t, 3, gw.statuses())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 3, gw.statuses())
}

func TestPollerRecordsFailure(t *testing.T) {
	gw := &fakeGateway{status: func(ctx context.Context, id string, call int) (job.Report, error) {
		return job.Report{ID: id, Status: job.StatusFailed, ErrorMessage: "unreadable pdf"}, nil
	}}
	registry, poller := newTestPoller(t, gw, 5*time.Millisecond, 30, nil)

	gen, _ := registry.Upsert(newJob("a", job.StatusProcessing, time.Now()))
	poller.Track("a", gen)

	require.Eventually(t, func() bool {
		got, _ := registry.Get("a")
		return got.Status == job.StatusFailed
	}, time.Second, time.Millisecond)

	got, _ := registry.Get("a")
	require.Equal(t, "unreadable pdf", got.ErrorMessage)
	require.Nil(t, got.Output)
}

func TestPollerAbandonsAfterMaxAttempts(t *testing.T) {
	gw := &fakeGateway{}
	registry, poller := newTestPoller(t, gw, 2*time.Millisecond, 5, nil)
	events, cleanup := registry.Subscribe()
	defer cleanup()

	gen, _ := registry.Upsert(newJob("a", job.StatusProcessing, time.Now()))
	poller.Track("a", gen)

	require.Eventually(t, func() bool { return !poller.Active("a") }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, 5, gw.statuses())
	got, _ := registry.Get("a")
	require.Equal(t, job.StatusProcessing, got.Status)
	require.Equal(t, job.HintAbandoned, got.Hint)
	require.Empty(t, got.ErrorMessage)

	var sawAbandon bool
	for len(events) > 0 {
		ev := <-events
		if ev.Type == EventHint && ev.Job.Hint == job.HintAbandoned {
			sawAbandon = true
		}
	}
	require.True(t, sawAbandon)
}

func TestPollerErrorsCountAsAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	gw := &fakeGateway{status: func(ctx context.Context, id string, call int) (job.Report, error) {
		return job.Report{}, boom
	}}
	reporter := &recordingReporter{}
	registry, poller := newTestPoller(t, gw, 2*time.Millisecond, 4, reporter)

	gen, _ := registry.Upsert(newJob("a", job.StatusProcessing, time.Now()))
	poller.Track("a", gen)

	require.Eventually(t, func() bool { return !poller.Active("a") }, time.Second, time.Millisecond)

	require.Equal(t, 4, gw.statuses())
	require.Equal(t, 4, reporter.count())
	require.ErrorIs(t, reporter.errs[0], boom)
	require.Equal(t, "a", reporter.fields[0]["job_id"])
	require.Equal(t, 4, reporter.fields[3]["attempt"])

	got, _ := registry.Get("a")
	require.Equal(t, job.StatusProcessing, got.Status)
	require.Equal(t, job.HintAbandoned, got.Hint)
}

func TestPollerRecoversAfterTransientErrors(t *testing.T) {
	gw := &fakeGateway{status: func(ctx context.Context, id string, call int) (job.Report, error) {
		if call <= 2 {
			return job.Report{}, errors.New("timeout")
		}
		return job.Report{ID: id, Status: job.StatusCompleted}, nil
	}}
	registry, poller := newTestPoller(t, gw, 2*time.Millisecond, 30, nil)

	gen, _ := registry.Upsert(newJob("a", job.StatusProcessing, time.Now()))
	poller.Track("a", gen)

	require.Eventually(t, func() bool {
		got, _ := registry.Get("a")
		return got.Status == job.StatusCompleted
	}, time.Second, time.Millisecond)
	require.Equal(t, 3, gw.statuses())
}

func TestPollerTrackIsIdempotent(t *testing.T) {
	gw := &fakeGateway{}
	registry, poller := newTestPoller(t, gw, time.Hour, 30, nil)
	gen, _ := registry.Upsert(newJob("a", job.StatusProcessing, time.Now()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if poller.Track("a", gen) {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, started)
	require.Equal(t, 1, poller.ActiveCount())
}

func TestPollerTrackSkipsTerminalAndUnknownJobs(t *testing.T) {
	gw := &fakeGateway{}
	registry, poller := newTestPoller(t, gw, time.Hour, 30, nil)

	gen, _ := registry.Upsert(newJob("done", job.StatusCompleted, time.Now()))
	require.False(t, poller.Track("done", gen))
	require.False(t, poller.Track("missing", 1))

	gen, _ = registry.Upsert(newJob("a", job.StatusQueued, time.Now()))
	require.False(t, poller.Track("a", gen+100))
	require.True(t, poller.Track("a", gen))

	got, _ := registry.Get("a")
	require.Equal(t, job.HintPolling, got.Hint)
}

func TestPollerSlowRequestDelaysNextTick(t *testing.T) {
	const delay = 40 * time.Millisecond
	gw := &fakeGateway{status: func(ctx context.Context, id string, call int) (job.Report, error) {
		time.Sleep(delay)
		return job.Report{ID: id, Status: job.StatusProcessing}, nil
	}}
	registry, poller := newTestPoller(t, gw, 5*time.Millisecond, 3, nil)

	gen, _ := registry.Upsert(newJob("a", job.StatusProcessing, time.Now()))
	poller.Track("a", gen)

	require.Eventually(t, func() bool { return !poller.Active("a") }, 2*time.Second, time.Millisecond)

	times := gw.times()
	require.Len(t, times, 3)
	for i := 1; i < len(times); i++ {
		require.GreaterOrEqual(t, times[i].Sub(times[i-1]), delay)
	}
}

func TestPollerCancelDiscardsLateResponse(t *testing.T) {
	inFlight := make(chan struct{})
	release := make(chan struct{})
	gw := &fakeGateway{status: func(ctx context.Context, id string, call int) (job.Report, error) {
		close(inFlight)
		<-release
		return job.Report{ID: id, Status: job.StatusCompleted}, nil
	}}
	registry, poller := newTestPoller(t, gw, time.Millisecond, 30, nil)

	gen, _ := registry.Upsert(newJob("a", job.StatusProcessing, time.Now()))
	poller.Track("a", gen)
	<-inFlight

	require.True(t, poller.Cancel("a"))
	require.False(t, poller.Active("a"))
	close(release)

	time.Sleep(20 * time.Millisecond)
	got, _ := registry.Get("a")
	require.Equal(t, job.StatusProcessing, got.Status)
	require.Equal(t, 1, gw.statuses())
}

func TestPollerStopWaitsForLoops(t *testing.T) {
	gw := &fakeGateway{}
	registry, poller := newTestPoller(t, gw, time.Millisecond, 1000, nil)

	for _, id := range []string{"a", "b", "c"} {
		gen, _ := registry.Upsert(newJob(id, job.StatusProcessing, time.Now()))
		require.True(t, poller.Track(id, gen))
	}

	poller.Stop()
	require.Zero(t, poller.ActiveCount())

	gen, _ := registry.Upsert(newJob("d", job.StatusProcessing, time.Now()))
	require.False(t, poller.Track("d", gen))
}
