package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"neonote/internal/domain/job"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

// EventType describes a registry change.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventHint    EventType = "hint"
	EventRemoved EventType = "removed"
)

// Event is broadcast to registry subscribers.
type Event struct {
	Type EventType `json:"type"`
	Job  job.Job   `json:"job"`
}

const subscriberBuffer = 64

type record struct {
	job job.Job
	gen uint64
}

// Registry is the in-memory job store. Each record carries a generation so
// that writes from a stale poll handle can be told apart from current ones.
type Registry struct {
	mu          sync.Mutex
	records     map[string]*record
	nextGen     uint64
	subscribers map[uint64]chan Event
	nextSub     uint64
	now         func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records:     map[string]*record{},
		subscribers: map[uint64]chan Event{},
		now:         time.Now,
	}
}

// Upsert inserts j or merges it into the existing record with the same id.
// It returns the record's generation and its resulting state.
func (r *Registry) Upsert(j job.Job) (uint64, job.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[j.ID]
	if !ok {
		r.nextGen++
		rec = &record{job: j, gen: r.nextGen}
		r.records[j.ID] = rec
		r.broadcastLocked(Event{Type: EventCreated, Job: rec.job})
		return rec.gen, rec.job
	}

	merged, changed := rec.job.Merge(j, r.now())
	if changed {
		rec.job = merged
		r.broadcastLocked(Event{Type: EventUpdated, Job: rec.job})
	}
	return rec.gen, rec.job
}

// Remove deletes a job. It reports whether the job existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	delete(r.records, id)
	r.broadcastLocked(Event{Type: EventRemoved, Job: rec.job})
	return true
}

// Get returns a snapshot of a job.
func (r *Registry) Get(id string) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return job.Job{}, ErrNotFound
	}
	return rec.job, nil
}

// Generation returns the current generation of a job.
func (r *Registry) Generation(id string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return 0, false
	}
	return rec.gen, true
}

// List returns all jobs ordered by creation time.
func (r *Registry) List() []job.Job {
	r.mu.Lock()
	items := make([]job.Job, 0, len(r.records))
	for _, rec := range r.records {
		items = append(items, rec.job)
	}
	r.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

// Apply merges a backend report into the record, provided the record still
// has generation gen. The second value is false when the write was discarded.
func (r *Registry) Apply(id string, gen uint64, report job.Report) (job.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.gen != gen {
		return job.Job{}, false
	}
	next, changed := rec.job.Apply(report, r.now())
	if changed {
		rec.job = next
		r.broadcastLocked(Event{Type: EventUpdated, Job: rec.job})
	}
	return rec.job, true
}

// SetHint updates the local hint of a non-terminal job under the same
// generation guard as Apply.
func (r *Registry) SetHint(id string, gen uint64, hint job.Hint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.gen != gen || rec.job.Status.Terminal() {
		return false
	}
	if rec.job.Hint == hint {
		return true
	}
	rec.job.Hint = hint
	rec.job.UpdatedAt = r.now()
	r.broadcastLocked(Event{Type: EventHint, Job: rec.job})
	return true
}

// Subscribe returns a channel of registry events and a cleanup callback.
// Events are dropped for subscribers that do not keep up.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	var once sync.Once

	r.mu.Lock()
	r.nextSub++
	subID := r.nextSub
	r.subscribers[subID] = ch
	r.mu.Unlock()

	cleanup := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subscribers, subID)
			close(ch)
		})
	}
	return ch, cleanup
}

func (r *Registry) broadcastLocked(event Event) {
	for _, subscriber := range r.subscribers {
		select {
		case subscriber <- event:
		default:
		}
	}
}
