package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Yair4430/CertiGranja-2.0/config"
	"github.com/Yair4430/CertiGranja-2.0/model"
)

// JobStore is an in-memory store for batch jobs.
// Getters return copies; all mutation goes through the store.
type JobStore struct {
	jobs    map[string]*model.Job
	mu      sync.RWMutex
	maxJobs int // Maximum jobs to keep, 0 = unlimited
}

var (
	globalStore *JobStore
	storeOnce   sync.Once
)

// InitJobStore initializes the global job store with configuration
func InitJobStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		globalStore = NewJobStore(cfg.MaxJobs)
		slog.Info("job store initialized", "max_jobs", globalStore.maxJobs)
	})
}

// GetJobStore returns the global job store
func GetJobStore() *JobStore {
	storeOnce.Do(func() {
		globalStore = NewJobStore(100)
	})
	return globalStore
}

func NewJobStore(maxJobs int) *JobStore {
	if maxJobs < 0 {
		maxJobs = 0
	}
	return &JobStore{
		jobs:    make(map[string]*model.Job),
		maxJobs: maxJobs,
	}
}

func (s *JobStore) Save(job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.UpdatedAt = time.Now()
	cp := *job
	s.jobs[job.ID] = &cp

	s.cleanupIfNeeded()
}

func (s *JobStore) Get(id string) *model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	return clone(j)
}

// GetByOwner returns the owner's jobs, newest first.
func (s *JobStore) GetByOwner(owner string) []*model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Job
	for _, j := range s.jobs {
		if j.Owner == owner {
			result = append(result, clone(j))
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result
}

func (s *JobStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

func (s *JobStore) UpdateStatus(id, status string, errMsg string) {
	s.update(id, func(j *model.Job) {
		j.Status = status
		j.ErrorMsg = errMsg
	})
}

func (s *JobStore) UpdateProgress(id string, processed, total int) {
	s.update(id, func(j *model.Job) {
		j.Processed = processed
		j.Total = total
	})
}

// Update applies fn to the stored job under the store lock.
func (s *JobStore) Update(id string, fn func(*model.Job)) {
	s.update(id, fn)
}

func (s *JobStore) update(id string, fn func(*model.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
		j.UpdatedAt = time.Now()
	}
}

// cleanupIfNeeded removes the oldest finished jobs once the store exceeds
// maxJobs. Running jobs are never evicted. Must be called with lock held.
func (s *JobStore) cleanupIfNeeded() {
	if s.maxJobs <= 0 || len(s.jobs) <= s.maxJobs {
		return
	}

	jobs := make([]*model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.Status != model.JobRunning {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})

	removeCount := len(s.jobs) - s.maxJobs
	for i := 0; i < removeCount && i < len(jobs); i++ {
		slog.Info("auto-cleaning old job",
			"job_id", jobs[i].ID,
			"created_at", jobs[i].CreatedAt,
		)
		delete(s.jobs, jobs[i].ID)
	}
}

// Count returns the number of jobs in the store
func (s *JobStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func clone(j *model.Job) *model.Job {
	cp := *j
	if j.Summary != nil {
		cp.Summary = make(map[model.Status]int, len(j.Summary))
		for k, v := range j.Summary {
			cp.Summary[k] = v
		}
	}
	return &cp
}
