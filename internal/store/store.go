package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"meeting-insights-go/internal/domain"
)

// Store holds the durable pipeline records: meetings, processing jobs
// and summary reports, each independently keyed. All state changes go
// through compare-and-set transitions under one lock, so a stale actor
// can never regress a record another actor already advanced.
type Store struct {
	mu       sync.RWMutex
	meetings map[string]domain.Meeting
	jobs     map[string]domain.ProcessingJob
	reports  map[string]domain.SummaryReport // keyed by meeting id
}

// New creates an empty store.
func New() *Store {
	return &Store{
		meetings: make(map[string]domain.Meeting),
		jobs:     make(map[string]domain.ProcessingJob),
		reports:  make(map[string]domain.SummaryReport),
	}
}

// CreateMeeting registers a new draft meeting and assigns its identity.
func (s *Store) CreateMeeting(m domain.Meeting) domain.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	m.ID = uuid.New().String()
	m.State = domain.MeetingStateDraft
	m.CreatedAt = now
	m.UpdatedAt = now
	s.meetings[m.ID] = m
	return m
}

// GetMeeting returns a meeting scoped by owner.
func (s *Store) GetMeeting(ownerID, id string) (domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meetingLocked(ownerID, id)
}

func (s *Store) meetingLocked(ownerID, id string) (domain.Meeting, error) {
	m, ok := s.meetings[id]
	if !ok || m.OwnerID != ownerID {
		return domain.Meeting{}, domain.ErrNotFound
	}
	return m, nil
}

// MeetingByID returns a meeting without owner scoping. For internal
// pipeline actors only; the API surface always goes through GetMeeting.
func (s *Store) MeetingByID(id string) (domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}
	return m, nil
}

// ListMeetings returns the owner's meetings, newest first.
func (s *Store) ListMeetings(ownerID string) []domain.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MetaPatch carries optional descriptive-metadata updates.
type MetaPatch struct {
	Title            *string
	ScheduledDate    *string
	ScheduledTime    *string
	DurationEstimate *string
	ParticipantCount *int
}

// PatchMeeting updates descriptive metadata. Metadata is frozen once the
// upload has completed.
func (s *Store) PatchMeeting(ownerID, id string, p MetaPatch) (domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.meetingLocked(ownerID, id)
	if err != nil {
		return domain.Meeting{}, err
	}
	if !m.Editable() {
		return domain.Meeting{}, fmt.Errorf("%w: metadata frozen in state %s", domain.ErrConflict, m.State)
	}

	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.ScheduledDate != nil {
		m.ScheduledDate = *p.ScheduledDate
	}
	if p.ScheduledTime != nil {
		m.ScheduledTime = *p.ScheduledTime
	}
	if p.DurationEstimate != nil {
		m.DurationEstimate = *p.DurationEstimate
	}
	if p.ParticipantCount != nil {
		m.ParticipantCount = *p.ParticipantCount
	}
	m.UpdatedAt = time.Now().UTC()
	s.meetings[id] = m
	return m, nil
}

// Transition applies a compare-and-set state change. The meeting must
// currently be in one of the given from states and the edge must be a
// valid one, otherwise nothing is mutated.
func (s *Store) Transition(id string, to domain.MeetingState, from ...domain.MeetingState) (domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, to, from...)
}

func (s *Store) transitionLocked(id string, to domain.MeetingState, from ...domain.MeetingState) (domain.Meeting, error) {
	m, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}

	matched := false
	for _, f := range from {
		if m.State == f {
			matched = true
			break
		}
	}
	if !matched {
		return domain.Meeting{}, fmt.Errorf("%w: meeting %s is %s, not %v", domain.ErrStaleTransition, id, m.State, from)
	}
	if !domain.ValidMeetingTransition(m.State, to) {
		return domain.Meeting{}, fmt.Errorf("%w: %s -> %s", domain.ErrStaleTransition, m.State, to)
	}

	m.State = to
	m.UpdatedAt = time.Now().UTC()
	s.meetings[id] = m
	return m, nil
}

// StartUpload moves a meeting into uploading and records the declared
// file metadata. Only draft and upload_failed meetings are admissible.
func (s *Store) StartUpload(id, fileName string, size int64) (domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}
	if m.State != domain.MeetingStateDraft && m.State != domain.MeetingStateUploadFailed {
		return domain.Meeting{}, fmt.Errorf("%w: cannot upload while %s", domain.ErrInvalidState, m.State)
	}

	m.State = domain.MeetingStateUploading
	m.FileName = fileName
	m.FileSizeBytes = size
	m.UpdatedAt = time.Now().UTC()
	s.meetings[id] = m
	return m, nil
}

// FinishUpload records the recording reference and moves the meeting to
// queued. The reference is write-once.
func (s *Store) FinishUpload(id, recordingRef string) (domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}
	if m.State != domain.MeetingStateUploading {
		return domain.Meeting{}, fmt.Errorf("%w: meeting %s is %s", domain.ErrStaleTransition, id, m.State)
	}

	m.State = domain.MeetingStateQueued
	m.RecordingRef = recordingRef
	m.LastFailureReason = ""
	m.UpdatedAt = time.Now().UTC()
	s.meetings[id] = m
	return m, nil
}

// AbandonUpload reverts an uploading meeting to upload_failed, recording
// why. Used for expired and cancelled sessions.
func (s *Store) AbandonUpload(id, reason string) (domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.transitionLocked(id, domain.MeetingStateUploadFailed, domain.MeetingStateUploading)
	if err != nil {
		return domain.Meeting{}, err
	}
	m.LastFailureReason = reason
	s.meetings[id] = m
	return m, nil
}
