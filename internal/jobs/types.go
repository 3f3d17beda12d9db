package jobs

import "time"

// Status mirrors the provider's batch states.
type Status string

const (
	StatusValidating Status = "validating"
	StatusInProgress Status = "in_progress"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
)

// Dead reports whether a batch ended without usable output.
func (s Status) Dead() bool {
	return s == StatusFailed || s == StatusExpired || s == StatusCancelled
}

// Request is one translation request submitted inside a batch.
type Request struct {
	Content string `json:"content"` // numbered request text
	ID      string `json:"id"`      // custom_id sent to the provider
}

// Job is one provider batch submission.
type Job struct {
	ID          string    `json:"id"`
	InputFileID string    `json:"input_file_id"`
	Status      Status    `json:"status"`
	Requests    []Request `json:"requests"`
	Finished    bool      `json:"finished"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	tmp.Requests = append([]Request(nil), job.Requests...)
	return &tmp
}
