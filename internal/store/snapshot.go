package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"meeting-insights-go/internal/domain"
)

// snapshot is the on-disk layout: each record kind persisted
// independently, keyed by its own id.
type snapshot struct {
	Meetings map[string]domain.Meeting       `json:"meetings"`
	Jobs     map[string]domain.ProcessingJob `json:"jobs"`
	Reports  map[string]domain.SummaryReport `json:"reports"`
	SavedAt  time.Time                       `json:"savedAt"`
}

// Save writes all records as indented JSON, creating parent directories.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Meetings: s.meetings,
		Jobs:     s.jobs,
		Reports:  s.reports,
		SavedAt:  time.Now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load restores records from disk. A missing file leaves the store empty.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Meetings != nil {
		s.meetings = snap.Meetings
	}
	if snap.Jobs != nil {
		s.jobs = snap.Jobs
	}
	if snap.Reports != nil {
		s.reports = snap.Reports
	}
	return nil
}

// Recover settles records interrupted by a crash or restart. In-flight
// uploads lose their session and revert to upload_failed; queued or
// running jobs are failed so the meeting becomes retryable again.
func (s *Store) Recover() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []string
	now := time.Now().UTC()

	for id, job := range s.jobs {
		if job.State.Terminal() {
			continue
		}
		job.State = domain.JobStateFailed
		job.FailureReason = "interrupted by restart"
		job.FinishedAt = now
		s.jobs[id] = job
		touched = append(touched, job.MeetingID)
	}

	for id, m := range s.meetings {
		switch m.State {
		case domain.MeetingStateUploading:
			m.State = domain.MeetingStateUploadFailed
			m.LastFailureReason = "upload interrupted by restart"
		case domain.MeetingStateQueued, domain.MeetingStateProcessing:
			m.State = domain.MeetingStateProcessingFailed
			m.LastFailureReason = "interrupted by restart"
		default:
			continue
		}
		m.UpdatedAt = now
		s.meetings[id] = m
		touched = append(touched, id)
	}
	return touched
}
