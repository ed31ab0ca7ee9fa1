package domain

import "time"

// UploadSession tracks one in-flight transfer. It is exclusively owned
// by the upload request that created it; BytesReceived never exceeds
// BytesExpected.
type UploadSession struct {
	ID            string    `json:"id"`
	MeetingID     string    `json:"meetingId"`
	ContentType   string    `json:"contentType"`
	BytesExpected int64     `json:"bytesExpected"`
	BytesReceived int64     `json:"bytesReceived"`
	StartedAt     time.Time `json:"startedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Progress returns received/expected as a percentage in [0,100].
func (s UploadSession) Progress() float64 {
	if s.BytesExpected <= 0 {
		return 0
	}
	return float64(s.BytesReceived) / float64(s.BytesExpected) * 100
}
