package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MimeLyc/subs-ai/pkg/log"
)

var (
	ErrAlreadyQueued = errors.New("request already queued")
	ErrDuplicateJob  = errors.New("job already exists")
)

// Store tracks open batch jobs. A request content belongs to at most one
// open job; the index makes that check constant time.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	index map[string]string // request content -> job ID
	now   func() time.Time
}

// NewStore rebuilds the store from a persisted snapshot.
func NewStore(loaded []*Job) *Store {
	s := &Store{
		jobs:  make(map[string]*Job),
		index: make(map[string]string),
		now:   time.Now,
	}
	s.hydrate(loaded)
	return s
}

func (s *Store) hydrate(loaded []*Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Oldest first so the original owner of a duplicated request keeps it.
	sorted := make([]*Job, 0, len(loaded))
	for _, raw := range loaded {
		if raw != nil && raw.ID != "" {
			sorted = append(sorted, raw)
		}
	}
	sortJobs(sorted)

	for _, raw := range sorted {
		if _, exists := s.jobs[raw.ID]; exists {
			log.Warn("Dropping duplicate job %s from state", raw.ID)
			continue
		}
		job := cloneJob(raw)
		s.jobs[job.ID] = job
		if job.Finished {
			continue
		}
		kept := job.Requests[:0]
		for _, req := range job.Requests {
			if owner, dup := s.index[req.Content]; dup {
				log.Warn("Request in job %s already owned by job %s, dropping it", job.ID, owner)
				continue
			}
			s.index[req.Content] = job.ID
			kept = append(kept, req)
		}
		job.Requests = kept
	}
}

// IsQueued reports whether content is part of an open job.
func (s *Store) IsQueued(content string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[content]
	return ok
}

// Enqueue records a submitted batch. It refuses contents that are already in
// an open job so the same request is never submitted twice.
func (s *Store) Enqueue(batchID, inputFileID string, status Status, requests []Request) (*Job, error) {
	if batchID == "" {
		return nil, errors.New("batch ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[batchID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, batchID)
	}
	seen := make(map[string]struct{}, len(requests))
	for _, req := range requests {
		if owner, ok := s.index[req.Content]; ok {
			return nil, fmt.Errorf("%w in job %s", ErrAlreadyQueued, owner)
		}
		if _, ok := seen[req.Content]; ok {
			return nil, fmt.Errorf("%w twice in batch %s", ErrAlreadyQueued, batchID)
		}
		seen[req.Content] = struct{}{}
	}

	now := s.now()
	job := &Job{
		ID:          batchID,
		InputFileID: inputFileID,
		Status:      status,
		Requests:    append([]Request(nil), requests...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.jobs[job.ID] = job
	for _, req := range job.Requests {
		s.index[req.Content] = job.ID
	}
	return cloneJob(job), nil
}

func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// Pending lists unfinished jobs, oldest first.
func (s *Store) Pending() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !job.Finished {
			ret = append(ret, cloneJob(job))
		}
	}
	sortJobs(ret)
	return ret
}

// SetStatus records the last status reported by the provider.
func (s *Store) SetStatus(id string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && job.Status != status {
		job.Status = status
		job.UpdatedAt = s.now()
	}
}

// Remove retires a job and releases its requests for resubmission.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	for _, req := range job.Requests {
		if owner, ok := s.index[req.Content]; ok && owner == id {
			delete(s.index, req.Content)
		}
	}
	delete(s.jobs, id)
	return true
}

// RequestCount is the number of requests across pending jobs.
func (s *Store) RequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if !job.Finished {
			n += len(job.Requests)
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Snapshot returns every job for persistence, oldest first.
func (s *Store) Snapshot() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		ret = append(ret, cloneJob(job))
	}
	sortJobs(ret)
	return ret
}

func sortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
