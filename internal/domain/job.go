package domain

import "time"

// JobState tracks one summarization run for a meeting.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// Terminal reports whether the job can no longer transition.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// ProcessingJob is one execution of the summarizer for a meeting.
// Attempt is 1-based and increases monotonically per meeting, across
// both internal retries and explicitly retried jobs.
type ProcessingJob struct {
	ID            string    `json:"id"`
	MeetingID     string    `json:"meetingId"`
	Attempt       int       `json:"attempt"`
	State         JobState  `json:"state"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt,omitempty"`
	FailureReason string    `json:"failureReason,omitempty"`
}
