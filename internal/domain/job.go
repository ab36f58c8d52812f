package domain

import "time"

// JobState enumerates generation job lifecycle states.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSuccess   JobState = "success"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSuccess, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// Active reports whether the job counts against a user's concurrency cap.
func (s JobState) Active() bool {
	return s == JobStatePending || s == JobStateRunning
}

// Progress checkpoints written by the processor.
const (
	ProgressQueued       = 0
	ProgressPreprocessed = 10
	ProgressDispatched   = 20
	ProgressGenerated    = 90
	ProgressUploading    = 95
	ProgressDone         = 100
)

// Job defaults applied when a request leaves them empty.
const (
	DefaultStyle = "ghibli"
	DefaultSize  = "1024x1024"
)

// GenerationJob is the persisted record of one image generation request.
type GenerationJob struct {
	ID            string
	UserID        string
	UploadRef     string
	Prompt        string
	PromptHash    string
	Style         string
	Size          string
	Seed          *int64
	LockSeed      bool
	State         JobState
	Progress      int
	ResultURL     string
	ResultPayload string
	Model         string
	DurationMs    *int64
	ErrorMessage  string
	ErrorCode     string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// JobResult carries the fields written when a job succeeds.
type JobResult struct {
	URL        string
	Payload    string
	Model      string
	Seed       int64
	DurationMs int64
}

// JobFailure carries the fields written when a job fails.
type JobFailure struct {
	Code    string
	Message string
}

// JobStatus is the caller-facing projection of a job.
type JobStatus struct {
	JobID      string   `json:"job_id"`
	State      JobState `json:"state"`
	Progress   int      `json:"progress"`
	URL        string   `json:"url,omitempty"`
	Seed       *int64   `json:"seed,omitempty"`
	Model      string   `json:"model,omitempty"`
	DurationMs *int64   `json:"duration_ms,omitempty"`
	Error      string   `json:"error,omitempty"`
	ErrorCode  string   `json:"error_code,omitempty"`
}

// Status projects the job into the shape returned to callers.
func (j *GenerationJob) Status() JobStatus {
	st := JobStatus{
		JobID:    j.ID,
		State:    j.State,
		Progress: j.Progress,
	}
	switch j.State {
	case JobStateSuccess:
		st.URL = j.ResultURL
		st.Seed = j.Seed
		st.Model = j.Model
		st.DurationMs = j.DurationMs
	case JobStateFailed:
		st.Error = j.ErrorMessage
		st.ErrorCode = j.ErrorCode
	}
	return st
}
