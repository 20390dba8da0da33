package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"neonote/internal/domain/job"
)

// Options configures a Service.
type Options struct {
	Policy            job.UploadPolicy
	PollInterval      time.Duration
	PollMaxAttempts   int
	UploadConcurrency int
	Reporter          Reporter
	Observer          Observer
}

// Service handles job tracking use cases.
type Service struct {
	registry  *Registry
	poller    *Poller
	submitter *Submitter
	logger    zerolog.Logger
}

// NewService creates a job service with injected ports.
func NewService(gateway Gateway, opts Options, logger zerolog.Logger) *Service {
	if opts.Policy.Types == nil {
		opts.Policy = job.DefaultPolicy()
	}
	registry := NewRegistry()
	poller := NewPoller(gateway, registry, PollerOptions{
		Interval:    opts.PollInterval,
		MaxAttempts: opts.PollMaxAttempts,
		Reporter:    opts.Reporter,
		Observer:    opts.Observer,
	}, logger)
	submitter := NewSubmitter(gateway, registry, poller, opts.Policy, opts.UploadConcurrency, opts.Observer, logger)

	return &Service{
		registry:  registry,
		poller:    poller,
		submitter: submitter,
		logger:    logger.With().Str("component", "jobs").Logger(),
	}
}

// Submit uploads one document.
func (s *Service) Submit(ctx context.Context, upload job.Upload) (job.Job, error) {
	return s.submitter.Submit(ctx, upload)
}

// SubmitBatch uploads several documents independently.
func (s *Service) SubmitBatch(ctx context.Context, uploads []job.Upload) []Result {
	return s.submitter.SubmitBatch(ctx, uploads)
}

// Get returns one job.
func (s *Service) Get(id string) (job.Job, error) {
	return s.registry.Get(id)
}

// List returns all tracked jobs.
func (s *Service) List() []job.Job {
	return s.registry.List()
}

// Subscribe streams registry events until cleanup is called.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.registry.Subscribe()
}

// Delete stops polling a job and removes it. No registry write for the job
// happens after Delete returns.
func (s *Service) Delete(id string) error {
	if !s.poller.Discard(id) {
		return ErrNotFound
	}
	s.logger.Info().Str("job_id", id).Msg("job deleted")
	return nil
}

// ErrNotResumed is returned when Resume could not restart polling, for
// example during shutdown or when the job was replaced concurrently.
var ErrNotResumed = errors.New("polling could not be restarted")

// Resume restarts polling for a job that is still processing, e.g. after
// its attempt budget ran out.
func (s *Service) Resume(id string) (job.Job, error) {
	current, err := s.registry.Get(id)
	if err != nil {
		return job.Job{}, err
	}
	if current.Status.Terminal() {
		return current, nil
	}
	gen, ok := s.registry.Generation(id)
	if !ok {
		return job.Job{}, ErrNotFound
	}
	if !s.poller.Renew(id, gen) {
		latest, err := s.registry.Get(id)
		if err != nil || latest.Status.Terminal() {
			return latest, err
		}
		return latest, ErrNotResumed
	}
	s.logger.Info().Str("job_id", id).Msg("polling resumed")
	return s.registry.Get(id)
}

// Artifact returns a learning artifact of a completed job.
func (s *Service) Artifact(id string, feature job.Feature) (string, error) {
	current, err := s.registry.Get(id)
	if err != nil {
		return "", err
	}
	return current.Artifact(feature)
}

// Polling reports whether a poll loop is running for id.
func (s *Service) Polling(id string) bool {
	return s.poller.Active(id)
}

// Shutdown stops every poll loop.
func (s *Service) Shutdown() {
	s.poller.Stop()
}
