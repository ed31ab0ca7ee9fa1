package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"meeting-insights-go/internal/domain"
)

// CreateJob opens a new queued processing job for the meeting and marks
// it current. At most one non-terminal job may exist per meeting; the
// attempt counter continues monotonically across jobs.
func (s *Store) CreateJob(meetingID string) (domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[meetingID]
	if !ok {
		return domain.ProcessingJob{}, domain.ErrNotFound
	}
	if active, ok := s.activeJobLocked(meetingID); ok {
		return active, fmt.Errorf("%w: job %s still %s", domain.ErrConflict, active.ID, active.State)
	}

	job := domain.ProcessingJob{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		Attempt:   s.lastAttemptLocked(meetingID) + 1,
		State:     domain.JobStateQueued,
		StartedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job

	m.CurrentJobID = job.ID
	m.UpdatedAt = time.Now().UTC()
	s.meetings[meetingID] = m
	return job, nil
}

// GetJob returns a job by id.
func (s *Store) GetJob(id string) (domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ProcessingJob{}, domain.ErrNotFound
	}
	return job, nil
}

// ActiveJob returns the meeting's non-terminal job, if any.
func (s *Store) ActiveJob(meetingID string) (domain.ProcessingJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeJobLocked(meetingID)
}

func (s *Store) activeJobLocked(meetingID string) (domain.ProcessingJob, bool) {
	for _, job := range s.jobs {
		if job.MeetingID == meetingID && !job.State.Terminal() {
			return job, true
		}
	}
	return domain.ProcessingJob{}, false
}

func (s *Store) lastAttemptLocked(meetingID string) int {
	last := 0
	for _, job := range s.jobs {
		if job.MeetingID == meetingID && job.Attempt > last {
			last = job.Attempt
		}
	}
	return last
}

// StartJob moves the current job to running and its meeting to
// processing in one critical section. Only the job recorded as current
// may advance the meeting.
func (s *Store) StartJob(meetingID, jobID string) (domain.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.guardedJobLocked(meetingID, jobID, domain.JobStateQueued)
	if err != nil {
		return domain.ProcessingJob{}, err
	}
	if _, err := s.transitionLocked(meetingID, domain.MeetingStateProcessing, domain.MeetingStateQueued); err != nil {
		return domain.ProcessingJob{}, err
	}

	job.State = domain.JobStateRunning
	s.jobs[jobID] = job
	return job, nil
}

// BumpAttempt increments a running job's attempt counter for an internal
// transient retry and returns the new value.
func (s *Store) BumpAttempt(jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if job.State != domain.JobStateRunning {
		return 0, fmt.Errorf("%w: job %s is %s", domain.ErrStaleTransition, jobID, job.State)
	}
	job.Attempt++
	s.jobs[jobID] = job
	return job.Attempt, nil
}

// CompleteJob commits a successful run: the report, the job's terminal
// state and the meeting's processed state are written atomically. A
// report from a superseded job fully replaces the previous one.
func (s *Store) CompleteJob(meetingID, jobID string, report domain.SummaryReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.guardedJobLocked(meetingID, jobID, domain.JobStateRunning)
	if err != nil {
		return err
	}
	if _, err := s.transitionLocked(meetingID, domain.MeetingStateProcessed, domain.MeetingStateProcessing); err != nil {
		return err
	}

	now := time.Now().UTC()
	report.MeetingID = meetingID
	report.JobID = jobID
	report.CreatedAt = now
	s.reports[meetingID] = report

	job.State = domain.JobStateSucceeded
	job.FinishedAt = now
	s.jobs[jobID] = job
	return nil
}

// FailJob commits a failed or cancelled run and moves the meeting to
// processing_failed with the stored reason.
func (s *Store) FailJob(meetingID, jobID, reason string, cancelled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.guardedJobLocked(meetingID, jobID, domain.JobStateRunning, domain.JobStateQueued)
	if err != nil {
		return err
	}
	m, err := s.transitionLocked(meetingID, domain.MeetingStateProcessingFailed,
		domain.MeetingStateProcessing, domain.MeetingStateQueued)
	if err != nil {
		return err
	}
	m.LastFailureReason = reason
	s.meetings[meetingID] = m

	job.State = domain.JobStateFailed
	if cancelled {
		job.State = domain.JobStateCancelled
	}
	job.FailureReason = reason
	job.FinishedAt = time.Now().UTC()
	s.jobs[jobID] = job
	return nil
}

// guardedJobLocked enforces the transition-authority rule: only the job
// the meeting records as current, in an expected state, may proceed.
func (s *Store) guardedJobLocked(meetingID, jobID string, want ...domain.JobState) (domain.ProcessingJob, error) {
	m, ok := s.meetings[meetingID]
	if !ok {
		return domain.ProcessingJob{}, domain.ErrNotFound
	}
	if m.CurrentJobID != jobID {
		return domain.ProcessingJob{}, fmt.Errorf("%w: job %s is not current for meeting %s", domain.ErrStaleTransition, jobID, meetingID)
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ProcessingJob{}, domain.ErrNotFound
	}
	for _, w := range want {
		if job.State == w {
			return job, nil
		}
	}
	return domain.ProcessingJob{}, fmt.Errorf("%w: job %s is %s", domain.ErrStaleTransition, jobID, job.State)
}

// Report returns the meeting's current summary report, if one exists.
func (s *Store) Report(meetingID string) (domain.SummaryReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[meetingID]
	return r, ok
}
