package job

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the backend-confirmed state of a generation job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus maps a backend status string. The second value is false when
// the input was not recognised and processing was assumed.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusQueued:
		return StatusQueued, true
	case StatusProcessing, "":
		return StatusProcessing, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	default:
		return StatusProcessing, false
	}
}

// Hint is a local annotation that never comes from the backend.
type Hint string

const (
	HintNone      Hint = ""
	HintPolling   Hint = "polling"
	HintAbandoned Hint = "abandoned"
)

// UnknownError is recorded when the backend fails a job without a message.
const UnknownError = "Unknown error"

// Flashcard is a single generated study card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Output holds generated artifacts of a completed job.
type Output struct {
	VideoURL    string          `json:"videoUrl,omitempty"`
	AudioURL    string          `json:"audioUrl,omitempty"`
	SummaryText string          `json:"summaryText,omitempty"`
	MindMap     json.RawMessage `json:"mindMap,omitempty"`
	Flashcards  []Flashcard     `json:"flashcards,omitempty"`
}

// Source describes the uploaded document as seen locally.
type Source struct {
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Kind     Kind   `json:"kind"`
}

// Report is a status snapshot returned by the backend.
type Report struct {
	ID           string
	Status       Status
	Output       *Output
	ErrorMessage string
}

// Job is one tracked upload.
type Job struct {
	ID           string    `json:"id"`
	Source       Source    `json:"source"`
	Status       Status    `json:"status"`
	Hint         Hint      `json:"hint,omitempty"`
	Output       *Output   `json:"output,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// New builds a job from the backend's first report.
func New(r Report, src Source, now time.Time) Job {
	j := Job{
		ID:        r.ID,
		Source:    src,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	j, _ = j.Apply(r, now)
	return j
}

// Apply merges a backend report. A terminal job never leaves its terminal
// state; such reports are ignored and the second value is false.
func (j Job) Apply(r Report, now time.Time) (Job, bool) {
	if j.Status.Terminal() && j.Status != r.Status {
		return j, false
	}

	next := j
	next.Status = r.Status
	if next.Status == "" {
		next.Status = StatusProcessing
	}
	next.Output = nil
	next.ErrorMessage = ""

	switch next.Status {
	case StatusCompleted:
		next.Output = r.Output
		if next.Output == nil {
			next.Output = &Output{}
		}
		next.Hint = HintNone
	case StatusFailed:
		next.ErrorMessage = strings.TrimSpace(r.ErrorMessage)
		if next.ErrorMessage == "" {
			next.ErrorMessage = UnknownError
		}
		next.Hint = HintNone
	}

	if next.Status == j.Status && next.ErrorMessage == j.ErrorMessage && sameOutput(next.Output, j.Output) && next.Hint == j.Hint {
		return j, false
	}
	next.UpdatedAt = now
	return next, true
}

// Merge folds a re-submitted job into an existing record, keeping the
// original creation time and terminal outcome.
func (j Job) Merge(other Job, now time.Time) (Job, bool) {
	next, changed := j.Apply(Report{
		ID:           j.ID,
		Status:       other.Status,
		Output:       other.Output,
		ErrorMessage: other.ErrorMessage,
	}, now)
	if other.Source != (Source{}) && other.Source != next.Source {
		next.Source = other.Source
		next.UpdatedAt = now
		changed = true
	}
	return next, changed
}

func sameOutput(a, b *Output) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.VideoURL != b.VideoURL || a.AudioURL != b.AudioURL || a.SummaryText != b.SummaryText {
		return false
	}
	if string(a.MindMap) != string(b.MindMap) || len(a.Flashcards) != len(b.Flashcards) {
		return false
	}
	for i := range a.Flashcards {
		if a.Flashcards[i] != b.Flashcards[i] {
			return false
		}
	}
	return true
}
