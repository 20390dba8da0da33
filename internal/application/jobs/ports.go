package jobs

import (
	"context"
	"time"

	"neonote/internal/domain/job"
)

// Gateway is the application port for the backend's job endpoints.
type Gateway interface {
	UploadDocument(ctx context.Context, kind job.Kind, upload job.Upload) (job.Report, error)
	JobStatus(ctx context.Context, id string) (job.Report, error)
}

// Reporter receives errors that are handled locally but worth surfacing.
type Reporter interface {
	Report(err error, fields map[string]any)
}

// Poll outcomes passed to Observer.PollFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
	OutcomeCancelled = "cancelled"
)

// Observer records job metrics.
type Observer interface {
	UploadAccepted(kind job.Kind)
	UploadRejected(fileType, reason string)
	UploadFailed(kind job.Kind)
	PollRequest(outcome string)
	PollStarted()
	PollFinished(outcome string, elapsed time.Duration)
}

type nopReporter struct{}

func (nopReporter) Report(error, map[string]any) {}

type nopObserver struct{}

func (nopObserver) UploadAccepted(job.Kind) {}
func (nopObserver) UploadRejected(string, string) {}
func (nopObserver) UploadFailed(job.Kind) {}
func (nopObserver) PollRequest(string) {}
func (nopObserver) PollStarted() {}
func (nopObserver) PollFinished(string, time.Duration) {}
