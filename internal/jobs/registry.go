// Package jobs implements the durable job registry and the bounded-worker
// pool that drains it: creating crawl/batch_crawl jobs, enforcing legal
// status transitions, and executing queued work through the crawl
// orchestrator.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"crawlforge/internal/model"
)

// legalTransitions enumerates which status changes the registry accepts.
// Any transition not listed here is rejected.
var legalTransitions = map[model.JobStatus][]model.JobStatus{
	model.JobPending:   {model.JobRunning},
	model.JobRunning:   {model.JobCompleted, model.JobFailed},
	model.JobCompleted: {},
	model.JobFailed:    {},
}

// ErrIllegalTransition is returned when a caller asks the registry to move
// a job between two statuses that are not adjacent in the lifecycle.
type ErrIllegalTransition struct {
	From, To model.JobStatus
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal job status transition %s -> %s", e.From, e.To)
}

// ListFilter narrows List to jobs matching the given fields; zero values
// are wildcards.
type ListFilter struct {
	Status model.JobStatus
	Type   model.JobType
	Limit  int
}

// Registry is the job persistence contract. Implementations must survive a
// process restart with no data loss for any job that reached at least
// JobPending; an in-memory implementation is provided for tests and for
// deployments that intentionally trade durability for simplicity.
type Registry interface {
	Create(ctx context.Context, jobType model.JobType, req model.CrawlRequest, batch []model.CrawlRequest) (model.Job, error)
	Get(ctx context.Context, id string) (model.Job, bool, error)
	// UpdateStatus performs a CAS transition from the job's current status
	// to to, returning ErrIllegalTransition if the move isn't legal or if
	// the job's status already changed out from under the caller.
	UpdateStatus(ctx context.Context, id string, to model.JobStatus, result *model.BatchResult, errMsg string) error
	List(ctx context.Context, filter ListFilter) ([]model.Job, error)
	// ClaimPending atomically moves up to n pending jobs to running and
	// returns them, so two workers never claim the same job.
	ClaimPending(ctx context.Context, n int) ([]model.Job, error)
	// DeleteOlderThan removes completed/failed jobs last updated before
	// cutoff, returning how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// InMemoryRegistry is a Registry backed by a mutex-guarded map. It satisfies
// the Registry contract's semantics (CAS transitions, filtering) but not
// its durability requirement; use it for tests or single-process
// deployments that accept losing in-flight jobs on crash.
type InMemoryRegistry struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

// NewInMemoryRegistry constructs an empty InMemoryRegistry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{jobs: make(map[string]*model.Job)}
}

func (r *InMemoryRegistry) Create(ctx context.Context, jobType model.JobType, req model.CrawlRequest, batch []model.CrawlRequest) (model.Job, error) {
	now := time.Now().UTC()
	job := model.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    model.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   req,
		Requests:  batch,
	}

	r.mu.Lock()
	r.jobs[job.ID] = &job
	r.mu.Unlock()

	return job, nil
}

func (r *InMemoryRegistry) Get(ctx context.Context, id string) (model.Job, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false, nil
	}
	return *j, true, nil
}

func (r *InMemoryRegistry) UpdateStatus(ctx context.Context, id string, to model.JobStatus, result *model.BatchResult, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	if !transitionAllowed(j.Status, to) {
		return ErrIllegalTransition{From: j.Status, To: to}
	}

	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	if result != nil {
		j.Result = result
	}
	if errMsg != "" {
		j.Error = errMsg
	}
	return nil
}

func (r *InMemoryRegistry) List(ctx context.Context, filter ListFilter) ([]model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Job
	for _, j := range r.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Type != "" && j.Type != filter.Type {
			continue
		}
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRegistry) ClaimPending(ctx context.Context, n int) ([]model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*model.Job
	for _, j := range r.jobs {
		if j.Status == model.JobPending {
			pending = append(pending, j)
		}
	}
	sort.Slice(pending, func(i, k int) bool { return pending[i].CreatedAt.Before(pending[k].CreatedAt) })

	if len(pending) > n {
		pending = pending[:n]
	}

	claimed := make([]model.Job, 0, len(pending))
	for _, j := range pending {
		j.Status = model.JobRunning
		j.UpdatedAt = time.Now().UTC()
		claimed = append(claimed, *j)
	}
	return claimed, nil
}

func (r *InMemoryRegistry) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, j := range r.jobs {
		if (j.Status == model.JobCompleted || j.Status == model.JobFailed) && j.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func transitionAllowed(from, to model.JobStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
