package domain

import "time"

// ActionItem is one follow-up task extracted from a meeting.
type ActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee"`
	Deadline string `json:"deadline"`
}

// ImportantDate is one dated event mentioned in a meeting.
type ImportantDate struct {
	Event string `json:"event"`
	Date  string `json:"date"`
}

// SummaryReport is the immutable structured result of a successful job.
// Slice ordering is discussion order and must be preserved end to end.
// A later job's report fully replaces an earlier one, never merges.
type SummaryReport struct {
	MeetingID      string          `json:"meetingId"`
	JobID          string          `json:"jobId"`
	Overview       string          `json:"overview"`
	KeyPoints      []string        `json:"keyPoints"`
	ActionItems    []ActionItem    `json:"actionItems"`
	ImportantDates []ImportantDate `json:"importantDates"`
	CreatedAt      time.Time       `json:"createdAt"`
}
