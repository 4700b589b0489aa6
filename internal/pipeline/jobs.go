package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/docproof/internal/report"
)

// JobStatus represents the state of an analysis job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusAnalyzing   JobStatus = "analyzing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusInterrupted JobStatus = "interrupted"
)

// Job tracks one uploaded document through analysis. It doubles as the
// Progress sink of its own run.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	// Requested bounds; nil means first or last page.
	StartPage *int `json:"start_page,omitempty"`
	EndPage   *int `json:"end_page,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress JobProgress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	fileData []byte
	result   *report.Aggregate
	errors   []string
}

// JobProgress counts pages as they finish.
type JobProgress struct {
	TotalPages    int      `json:"total_pages"`
	PagesDone     int      `json:"pages_done"`
	PagesAnalyzed int      `json:"pages_analyzed"`
	PagesSkipped  int      `json:"pages_skipped"`
	PagesFailed   int      `json:"pages_failed"`
	Errors        []string `json:"errors"`
}

// NewJob returns a queued job for an uploaded file.
func NewJob(id, filename string, data []byte, start, end *int) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Filename:    filename,
		StartPage:   start,
		EndPage:     end,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

func (j *Job) Start(total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalPages = total
	j.UpdatedAt = time.Now()
}

func (j *Job) PageDone(number int, outcome Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PagesDone++
	switch outcome {
	case OutcomeAnalyzed:
		j.Progress.PagesAnalyzed++
	case OutcomeSkipped:
		j.Progress.PagesSkipped++
	case OutcomeFailed:
		j.Progress.PagesFailed++
		j.errors = append(j.errors, fmt.Sprintf("page %d failed", number))
		j.Progress.Errors = j.errors
	}
	j.UpdatedAt = time.Now()
}

func (j *Job) Finish() {}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetResult stores the finished report and releases the upload.
func (j *Job) SetResult(agg *report.Aggregate) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = agg
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Result returns the report of a completed job, or nil.
func (j *Job) Result() *report.Aggregate {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string      `json:"job_id"`
	Filename    string      `json:"filename"`
	StartPage   *int        `json:"start_page,omitempty"`
	EndPage     *int        `json:"end_page,omitempty"`
	Status      JobStatus   `json:"status"`
	Phase       string      `json:"phase"`
	Progress    JobProgress `json:"progress"`
	ContentHash string      `json:"content_hash,omitempty"`
	Findings    *int        `json:"findings,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)

	snap := JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		StartPage:   j.StartPage,
		EndPage:     j.EndPage,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    progress,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.result != nil {
		n := j.result.Total()
		snap.Findings = &n
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
