package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"neonote/internal/domain/job"
)

const defaultUploadConcurrency = 4

// ErrMissingJobID is returned when the backend accepts an upload without an id.
var ErrMissingJobID = errors.New("backend returned a job without an id")

// Uploader is the part of Gateway the submitter needs.
type Uploader interface {
	UploadDocument(ctx context.Context, kind job.Kind, upload job.Upload) (job.Report, error)
}

// Result is the outcome of one file in a batch.
type Result struct {
	FileName string
	Job      job.Job
	Err      error
}

// Submitter validates uploads, sends them, and hands live jobs to the poller.
type Submitter struct {
	uploader    Uploader
	registry    *Registry
	poller      *Poller
	policy      job.UploadPolicy
	concurrency int
	observer    Observer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmitter wires a submitter to its registry and poller.
func NewSubmitter(uploader Uploader, registry *Registry, poller *Poller, policy job.UploadPolicy, concurrency int, observer Observer, logger zerolog.Logger) *Submitter {
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Submitter{
		uploader:    uploader,
		registry:    registry,
		poller:      poller,
		policy:      policy,
		concurrency: concurrency,
		observer:    observer,
		logger:      logger.With().Str("component", "submitter").Logger(),
		now:         time.Now,
	}
}

// Submit validates and uploads one document. Validation failures return a
// *job.ValidationError without touching the network; gateway errors are
// returned unchanged and nothing is registered.
func (s *Submitter) Submit(ctx context.Context, upload job.Upload) (job.Job, error) {
	kind, err := s.policy.Check(upload)
	if err != nil {
		var verr *job.ValidationError
		if errors.As(err, &verr) {
			s.observer.UploadRejected(s.fileType(upload.MimeType), string(verr.Reason))
		}
		s.logger.Info().Err(err).Str("file", upload.FileName).Msg("upload rejected")
		return job.Job{}, err
	}

	report, err := s.uploader.UploadDocument(ctx, kind, upload)
	if err != nil {
		s.observer.UploadFailed(kind)
		s.logger.Warn().Err(err).Str("file", upload.FileName).Msg("upload failed")
		return job.Job{}, err
	}
	if report.ID == "" {
		return job.Job{}, ErrMissingJobID
	}

	created := job.New(report, job.Source{
		FileName: upload.FileName,
		Size:     upload.Size,
		MimeType: job.NormalizeMime(upload.MimeType),
		Kind:     kind,
	}, s.now())

	gen, stored := s.registry.Upsert(created)
	s.observer.UploadAccepted(kind)
	s.logger.Info().Str("job_id", stored.ID).Str("file", upload.FileName).Str("status", string(stored.Status)).Msg("upload accepted")

	if stored.Status.Terminal() {
		return stored, nil
	}
	s.poller.Track(stored.ID, gen)
	if latest, err := s.registry.Get(stored.ID); err == nil {
		stored = latest
	}
	return stored, nil
}

// fileType labels an upload by kind when the type is supported and by its
// normalized media type otherwise.
func (s *Submitter) fileType(mimeType string) string {
	normalized := job.NormalizeMime(mimeType)
	if kind, ok := s.policy.Types[normalized]; ok {
		return string(kind)
	}
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// SubmitBatch submits every upload independently. One file failing does not
// affect the others; results keep the input order.
func (s *Submitter) SubmitBatch(ctx context.Context, uploads []job.Upload) []Result {
	results := make([]Result, len(uploads))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, upload := range uploads {
		i, upload := i, upload
		g.Go(func() error {
			j, err := s.Submit(ctx, upload)
			results[i] = Result{FileName: upload.FileName, Job: j, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
