package domain

import "time"

// MeetingState tracks where a meeting sits in the ingestion pipeline.
type MeetingState string

const (
	MeetingStateDraft            MeetingState = "draft"
	MeetingStateUploading        MeetingState = "uploading"
	MeetingStateQueued           MeetingState = "queued"
	MeetingStateProcessing       MeetingState = "processing"
	MeetingStateProcessed        MeetingState = "processed"
	MeetingStateUploadFailed     MeetingState = "upload_failed"
	MeetingStateProcessingFailed MeetingState = "processing_failed"
)

// Meeting is one recorded session and its processing outcome.
// RecordingRef is set once on upload completion and never changes after.
type Meeting struct {
	ID                string       `json:"id"`
	OwnerID           string       `json:"ownerId"`
	Title             string       `json:"title"`
	ScheduledDate     string       `json:"scheduledDate,omitempty"`
	ScheduledTime     string       `json:"scheduledTime,omitempty"`
	DurationEstimate  string       `json:"durationEstimate,omitempty"`
	ParticipantCount  int          `json:"participantCount,omitempty"`
	State             MeetingState `json:"state"`
	FileName          string       `json:"fileName,omitempty"`
	FileSizeBytes     int64        `json:"fileSizeBytes,omitempty"`
	RecordingRef      string       `json:"recordingRef,omitempty"`
	CurrentJobID      string       `json:"currentJobId,omitempty"`
	LastFailureReason string       `json:"lastFailureReason,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// ValidMeetingTransition enforces the allowed meeting state machine edges.
func ValidMeetingTransition(from, to MeetingState) bool {
	switch from {
	case MeetingStateDraft:
		return to == MeetingStateUploading
	case MeetingStateUploading:
		return to == MeetingStateQueued || to == MeetingStateUploadFailed
	case MeetingStateQueued:
		// The failure edge covers cancellation of a still-queued job.
		return to == MeetingStateProcessing || to == MeetingStateProcessingFailed
	case MeetingStateProcessing:
		return to == MeetingStateProcessed || to == MeetingStateProcessingFailed
	case MeetingStateUploadFailed:
		return to == MeetingStateUploading
	case MeetingStateProcessingFailed:
		return to == MeetingStateQueued
	default:
		return false
	}
}

// Editable reports whether descriptive metadata may still change.
// Metadata is frozen once an upload has completed.
func (m Meeting) Editable() bool {
	switch m.State {
	case MeetingStateDraft, MeetingStateUploading, MeetingStateUploadFailed:
		return true
	default:
		return false
	}
}
