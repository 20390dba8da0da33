package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"neonote/internal/domain/job"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 30
)

// StatusFetcher is the part of Gateway the poller needs.
type StatusFetcher interface {
	JobStatus(ctx context.Context, id string) (job.Report, error)
}

// PollerOptions tunes a Poller. Zero values fall back to defaults.
type PollerOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Reporter    Reporter
	Observer    Observer
}

type pollHandle struct {
	id      string
	gen     uint64
	cancel  context.CancelFunc
	started time.Time
	// renew grants a fresh attempt budget; guarded by Poller.mu.
	renew bool
}

// Poller runs at most one status loop per job id.
type Poller struct {
	fetcher     StatusFetcher
	registry    *Registry
	reporter    Reporter
	observer    Observer
	logger      zerolog.Logger
	interval    time.Duration
	maxAttempts int

	mu      sync.Mutex
	handles map[string]*pollHandle
	stopped bool
	wg      sync.WaitGroup
}

// NewPoller creates a poller writing into registry.
func NewPoller(fetcher StatusFetcher, registry *Registry, opts PollerOptions, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultPollMaxAttempts
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Poller{
		fetcher:     fetcher,
		registry:    registry,
		reporter:    opts.Reporter,
		observer:    opts.Observer,
		logger:      logger.With().Str("component", "poller").Logger(),
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		handles:     map[string]*pollHandle{},
	}
}

// Track starts polling job id at generation gen. It is a no-op returning
// false when the job is already polled, terminal, unknown, or was replaced.
func (p *Poller) Track(id string, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	if _, ok := p.handles[id]; ok {
		return false
	}
	return p.trackLocked(id, gen)
}

// Renew makes sure job id is polled with a full attempt budget. A running
// loop for the same generation keeps going instead of abandoning.
func (p *Poller) Renew(id string, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	if h, ok := p.handles[id]; ok {
		if h.gen != gen {
			return false
		}
		h.renew = true
		return true
	}
	return p.trackLocked(id, gen)
}

func (p *Poller) trackLocked(id string, gen uint64) bool {
	current, err := p.registry.Get(id)
	if err != nil || current.Status.Terminal() {
		return false
	}
	if g, ok := p.registry.Generation(id); !ok || g != gen {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &pollHandle{id: id, gen: gen, cancel: cancel, started: time.Now()}
	p.handles[id] = h
	p.wg.Add(1)

	p.registry.SetHint(id, gen, job.HintPolling)
	p.observer.PollStarted()
	go p.run(ctx, h)
	return true
}

// Discard removes job id from the registry and cancels its poll loop in one
// step, so no Track can slip in between. It reports whether the job existed.
func (p *Poller) Discard(id string) bool {
	p.mu.Lock()
	removed := p.registry.Remove(id)
	h, ok := p.handles[id]
	if ok {
		delete(p.handles, id)
	}
	p.mu.Unlock()

	if ok {
		h.cancel()
	}
	return removed
}

// Cancel stops polling job id. Responses still in flight are discarded.
func (p *Poller) Cancel(id string) bool {
	p.mu.Lock()
	h, ok := p.handles[id]
	if ok {
		delete(p.handles, id)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel()
	return true
}

// Active reports whether job id has a running poll loop.
func (p *Poller) Active(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.handles[id]
	return ok
}

// ActiveCount returns the number of running poll loops.
func (p *Poller) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Stop cancels every poll loop and waits for them to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	for id, h := range p.handles {
		h.cancel()
		delete(p.handles, id)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, h *pollHandle) {
	outcome := OutcomeCancelled
	log := p.logger.With().Str("job_id", h.id).Logger()
	defer func() {
		p.release(h)
		p.observer.PollFinished(outcome, time.Since(h.started))
		p.wg.Done()
	}()

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		report, err := p.fetcher.JobStatus(ctx, h.id)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			p.observer.PollRequest("error")
			log.Warn().Err(err).Int("attempt", attempt).Msg("status poll failed")
			p.reporter.Report(err, map[string]any{"job_id": h.id, "attempt": attempt})
		} else {
			p.observer.PollRequest("ok")
			current, ok := p.registry.Apply(h.id, h.gen, report)
			if !ok {
				log.Debug().Msg("job gone, stopping poll")
				return
			}
			if current.Status.Terminal() {
				outcome = string(current.Status)
				log.Info().Str("status", string(current.Status)).Int("attempts", attempt).Msg("job finished")
				return
			}
		}

		if attempt >= p.maxAttempts {
			renewed, abandoned := p.exhausted(h)
			if renewed {
				log.Debug().Int("attempts", attempt).Msg("polling renewed")
				attempt = 0
				timer.Reset(p.interval)
				continue
			}
			if abandoned {
				outcome = OutcomeAbandoned
				log.Info().Int("attempts", attempt).Msg("polling abandoned, job still processing")
			}
			return
		}
		timer.Reset(p.interval)
	}
}

// exhausted either renews h or releases it and marks the job abandoned. Both
// happen under p.mu so a concurrent Renew is never lost.
func (p *Poller) exhausted(h *pollHandle) (renewed, abandoned bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h.renew {
		h.renew = false
		return true, false
	}
	if current, ok := p.handles[h.id]; !ok || current != h {
		return false, false
	}
	delete(p.handles, h.id)
	p.registry.SetHint(h.id, h.gen, job.HintAbandoned)
	return false, true
}

func (p *Poller) release(h *pollHandle) {
	p.mu.Lock()
	if current, ok := p.handles[h.id]; ok && current == h {
		delete(p.handles, h.id)
	}
	p.mu.Unlock()
	h.cancel()
}
