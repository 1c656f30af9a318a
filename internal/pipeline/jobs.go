package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/output"
)

// JobStatus represents the state of a summarization job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = "parsing"
	StatusSummarizing JobStatus = "summarizing"
	StatusReducing    JobStatus = "reducing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPartial     JobStatus = "partial"
)

// Job tracks the state of a single document summarization.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	run       config.RunConfig
	fileData  []byte
	errors    []string
	artifacts map[string]output.Artifact
}

// Progress tracks processing progress.
type Progress struct {
	Level           int      `json:"level"`
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	ChunksFailed    int      `json:"chunks_failed"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
}

// NewJob creates a queued job for filename with a fresh ID.
func NewJob(filename string, data []byte, run config.RunConfig) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		run:       run,
		fileData:  data,
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

// Cleanup removes expired jobs.
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

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
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

// AddWarning records a non-fatal problem.
func (j *Job) AddWarning(w string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Warnings = append(j.Progress.Warnings, w)
	j.UpdatedAt = time.Now()
}

// LevelStarted resets chunk progress for a new reduction level.
func (j *Job) LevelStarted(level, chunks int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if level > 0 {
		j.Status = StatusReducing
		j.Phase = fmt.Sprintf("reducing level %d", level)
	} else {
		j.Status = StatusSummarizing
		j.Phase = "summarizing chunks"
	}
	j.Progress.Level = level
	j.Progress.TotalChunks = chunks
	j.Progress.ChunksProcessed = 0
	j.Progress.ChunksFailed = 0
	j.UpdatedAt = time.Now()
}

// ChunkDone counts one finished chunk at the current level.
func (j *Job) ChunkDone(level, ordinal int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	if err != nil {
		j.Progress.ChunksFailed++
	}
	j.UpdatedAt = time.Now()
}

// Run returns the run configuration the job was submitted with.
func (j *Job) Run() config.RunConfig {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.run
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetContentHash records the hash of the parsed text.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// SetArtifacts stores the artifacts produced by the run.
func (j *Job) SetArtifacts(artifacts []output.Artifact) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.artifacts = make(map[string]output.Artifact, len(artifacts))
	for _, a := range artifacts {
		j.artifacts[a.Name] = a
	}
	j.UpdatedAt = time.Now()
}

// Artifact returns a produced artifact by file name.
func (j *Job) Artifact(name string) (output.Artifact, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	a, ok := j.artifacts[name]
	return a, ok
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string            `json:"job_id"`
	Status      JobStatus         `json:"status"`
	Phase       string            `json:"phase"`
	Filename    string            `json:"filename"`
	Detail      int               `json:"summary_level"`
	Keep        bool              `json:"keep"`
	Context     int               `json:"context"`
	Progress    Progress          `json:"progress"`
	Artifacts   []output.Artifact `json:"artifacts"`
	ContentHash string            `json:"content_hash,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	warnings := j.Progress.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	artifacts := make([]output.Artifact, 0, len(j.artifacts))
	for _, a := range j.artifacts {
		artifacts = append(artifacts, a)
	}
	sort.Slice(artifacts, func(a, b int) bool { return artifacts[a].Name < artifacts[b].Name })

	return JobSnapshot{
		ID:       j.ID,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Detail:   j.run.Detail,
		Keep:     j.run.KeepIntermediate,
		Context:  j.run.ContextWindow,
		Progress: Progress{
			Level:           j.Progress.Level,
			TotalChunks:     j.Progress.TotalChunks,
			ChunksProcessed: j.Progress.ChunksProcessed,
			ChunksFailed:    j.Progress.ChunksFailed,
			Errors:          append([]string{}, errs...),
			Warnings:        append([]string{}, warnings...),
		},
		Artifacts:   artifacts,
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
