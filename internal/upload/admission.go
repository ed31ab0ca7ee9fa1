package upload

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/blob"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/domain"
	"meeting-insights-go/internal/store"
)

// Enqueuer creates the processing job once an upload lands. Satisfied
// by the jobs manager.
type Enqueuer interface {
	Enqueue(meetingID string) (domain.ProcessingJob, error)
}

// Controller admits uploads: it validates type, size and meeting state,
// owns the in-flight sessions, and hands completed recordings to the
// blob store and job queue. Each session has exactly one writer; chunks
// are accepted strictly in order.
type Controller struct {
	mu       sync.Mutex
	sessions map[string]*session

	store *store.Store
	blobs blob.Store
	enq   Enqueuer
	cfg   config.UploadConfig
	log   *logrus.Entry
}

type session struct {
	domain.UploadSession
	ownerID string
	buf     bytes.Buffer
}

func NewController(st *store.Store, blobs blob.Store, enq Enqueuer, cfg config.UploadConfig, log *logrus.Entry) *Controller {
	return &Controller{
		sessions: make(map[string]*session),
		store:    st,
		blobs:    blobs,
		enq:      enq,
		cfg:      cfg,
		log:      log.WithField("component", "upload"),
	}
}

// Begin validates the declared upload and opens a session, moving the
// meeting to uploading. Rejections leave the meeting untouched.
func (c *Controller) Begin(ownerID, meetingID, fileName, contentType string, declaredSize int64) (domain.UploadSession, error) {
	if _, err := c.store.GetMeeting(ownerID, meetingID); err != nil {
		return domain.UploadSession{}, err
	}
	if !c.typeAllowed(contentType) {
		return domain.UploadSession{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, contentType)
	}
	if declaredSize > c.cfg.MaxSizeBytes {
		return domain.UploadSession{}, fmt.Errorf("%w: %d bytes exceeds %d byte limit",
			domain.ErrPayloadTooLarge, declaredSize, c.cfg.MaxSizeBytes)
	}

	if _, err := c.store.StartUpload(meetingID, fileName, declaredSize); err != nil {
		return domain.UploadSession{}, err
	}

	now := time.Now().UTC()
	s := &session{
		UploadSession: domain.UploadSession{
			ID:            uuid.New().String(),
			MeetingID:     meetingID,
			ContentType:   contentType,
			BytesExpected: declaredSize,
			StartedAt:     now,
			ExpiresAt:     now.Add(c.cfg.SessionTTL.Std()),
		},
		ownerID: ownerID,
	}

	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"meeting_id":     meetingID,
		"session_id":     s.ID,
		"bytes_expected": declaredSize,
	}).Info("upload session opened")
	return s.UploadSession, nil
}

// Ingest appends one chunk at the given offset. The offset must equal
// the bytes received so far; out-of-order or overflowing chunks are
// rejected without mutating the session.
func (c *Controller) Ingest(ownerID, sessionID string, offset int64, data []byte) (domain.UploadSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessionLocked(ownerID, sessionID)
	if err != nil {
		return domain.UploadSession{}, err
	}
	if time.Now().After(s.ExpiresAt) {
		c.abandonLocked(s, "upload session expired")
		return domain.UploadSession{}, fmt.Errorf("%w: session expired", domain.ErrNotFound)
	}
	if offset != s.BytesReceived {
		return domain.UploadSession{}, fmt.Errorf("%w: offset %d, expected %d", domain.ErrInvalidChunk, offset, s.BytesReceived)
	}
	if s.BytesReceived+int64(len(data)) > s.BytesExpected {
		return domain.UploadSession{}, fmt.Errorf("%w: chunk overflows declared size", domain.ErrInvalidChunk)
	}

	s.buf.Write(data)
	s.BytesReceived += int64(len(data))
	return s.UploadSession, nil
}

// Complete persists the recording, destroys the session, queues the
// meeting and enqueues its first processing job.
func (c *Controller) Complete(ctx context.Context, ownerID, sessionID string) (domain.Meeting, error) {
	c.mu.Lock()
	s, err := c.sessionLocked(ownerID, sessionID)
	if err != nil {
		c.mu.Unlock()
		return domain.Meeting{}, err
	}
	if s.BytesReceived < s.BytesExpected {
		c.mu.Unlock()
		return domain.Meeting{}, fmt.Errorf("%w: %d of %d bytes received",
			domain.ErrIncompleteTransfer, s.BytesReceived, s.BytesExpected)
	}
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	ref, err := c.blobs.Put(ctx, s.buf.Bytes())
	if err != nil {
		// Transfer is intact; reopen the session so the client can retry
		// the completion call.
		c.mu.Lock()
		c.sessions[sessionID] = s
		c.mu.Unlock()
		return domain.Meeting{}, fmt.Errorf("store recording: %w", err)
	}

	m, err := c.store.FinishUpload(s.MeetingID, ref)
	if err != nil {
		return domain.Meeting{}, err
	}

	if _, err := c.enq.Enqueue(s.MeetingID); err != nil {
		c.log.WithField("meeting_id", s.MeetingID).WithField("error", err.Error()).
			Warn("auto-enqueue after upload failed")
	}

	c.log.WithFields(logrus.Fields{
		"meeting_id":    s.MeetingID,
		"recording_ref": ref,
		"bytes":         s.BytesReceived,
	}).Info("upload completed")
	return m, nil
}

// Cancel abandons an in-flight session at the owner's request.
func (c *Controller) Cancel(ownerID, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessionLocked(ownerID, sessionID)
	if err != nil {
		return err
	}
	c.abandonLocked(s, "upload cancelled by owner")
	return nil
}

// Progress returns the live session for a meeting, if one exists.
func (c *Controller) Progress(meetingID string) (domain.UploadSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.sessions {
		if s.MeetingID == meetingID {
			return s.UploadSession, true
		}
	}
	return domain.UploadSession{}, false
}

// SweepExpired abandons sessions past their deadline. Called by Run and
// directly from tests.
func (c *Controller) SweepExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, s := range c.sessions {
		if now.After(s.ExpiresAt) {
			c.abandonLocked(s, "upload session expired")
			n++
		}
	}
	return n
}

// Run drives the expiry sweeper until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := c.SweepExpired(now); n > 0 {
				c.log.WithField("sessions", n).Info("abandoned expired upload sessions")
			}
		}
	}
}

func (c *Controller) sessionLocked(ownerID, sessionID string) (*session, error) {
	s, ok := c.sessions[sessionID]
	if !ok || s.ownerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// abandonLocked drops the session and reverts the meeting. Buffer
// cleanup is implicit; no partial blob was ever written.
func (c *Controller) abandonLocked(s *session, reason string) {
	delete(c.sessions, s.ID)
	if _, err := c.store.AbandonUpload(s.MeetingID, reason); err != nil {
		c.log.WithField("meeting_id", s.MeetingID).WithField("error", err.Error()).
			Warn("could not mark upload failed")
	}
}

func (c *Controller) typeAllowed(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range c.cfg.AllowedTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}
