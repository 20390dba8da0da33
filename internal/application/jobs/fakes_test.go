package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"neonote/internal/domain/job"
)

type fakeGateway struct {
	mu          sync.Mutex
	uploadCalls int
	statusCalls int
	callTimes   []time.Time
	upload      func(kind job.Kind, u job.Upload) (job.Report, error)
	status      func(ctx context.Context, id string, call int) (job.Report, error)
}

func (f *fakeGateway) UploadDocument(ctx context.Context, kind job.Kind, u job.Upload) (job.Report, error) {
	f.mu.Lock()
	f.uploadCalls++
	fn := f.upload
	f.mu.Unlock()

	if fn == nil {
		return job.Report{ID: "job-" + u.FileName, Status: job.StatusProcessing}, nil
	}
	return fn(kind, u)
}

func (f *fakeGateway) JobStatus(ctx context.Context, id string) (job.Report, error) {
	f.mu.Lock()
	f.statusCalls++
	call := f.statusCalls
	f.callTimes = append(f.callTimes, time.Now())
	fn := f.status
	f.mu.Unlock()

	if fn == nil {
		return job.Report{ID: id, Status: job.StatusProcessing}, nil
	}
	return fn(ctx, id, call)
}

func (f *fakeGateway) uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadCalls
}

func (f *fakeGateway) statuses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeGateway) times() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.callTimes...)
}

type recordingReporter struct {
	mu     sync.Mutex
	errs   []error
	fields []map[string]any
}

func (r *recordingReporter) Report(err error, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.fields = append(r.fields, fields)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func newTestService(t *testing.T, gw Gateway, interval time.Duration, maxAttempts int, reporter Reporter) *Service {
	t.Helper()
	svc := NewService(gw, Options{
		Policy:          job.DefaultPolicy(),
		PollInterval:    interval,
		PollMaxAttempts: maxAttempts,
		Reporter:        reporter,
	}, zerolog.Nop())
	t.Cleanup(svc.Shutdown)
	return svc
}

func pdf(name string, size int64) job.Upload {
	return job.Upload{FileName: name, Size: size, MimeType: job.MimePDF}
}

type recordingObserver struct {
	mu       sync.Mutex
	uploads  []string
	finished []string
}

func (o *recordingObserver) record(entry string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uploads = append(o.uploads, entry)
}

func (o *recordingObserver) UploadAccepted(kind job.Kind) {
	o.record(string(kind) + "/accepted")
}

func (o *recordingObserver) UploadRejected(fileType, reason string) {
	o.record(fileType + "/" + reason)
}

func (o *recordingObserver) UploadFailed(kind job.Kind) {
	o.record(string(kind) + "/failed")
}

func (o *recordingObserver) PollRequest(string) {}
func (o *recordingObserver) PollStarted() {}

func (o *recordingObserver) PollFinished(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, outcome)
}

func (o *recordingObserver) uploadLabels() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.uploads...)
}
