package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"meeting-insights-go/internal/domain"
	"meeting-insights-go/internal/export"
	"meeting-insights-go/internal/store"
)

type createMeetingRequest struct {
	Title            string `json:"title"`
	ScheduledDate    string `json:"scheduledDate"`
	ScheduledTime    string `json:"scheduledTime"`
	DurationEstimate string `json:"durationEstimate"`
	ParticipantCount int    `json:"participantCount"`
}

func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	m := s.store.CreateMeeting(domain.Meeting{
		OwnerID:          ownerID,
		Title:            req.Title,
		ScheduledDate:    req.ScheduledDate,
		ScheduledTime:    req.ScheduledTime,
		DurationEstimate: req.DurationEstimate,
		ParticipantCount: req.ParticipantCount,
	})
	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request, ownerID string) {
	s.writeJSON(w, http.StatusOK, s.store.ListMeetings(ownerID))
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request, ownerID string) {
	m, err := s.store.GetMeeting(ownerID, r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

type patchMeetingRequest struct {
	Title            *string `json:"title"`
	ScheduledDate    *string `json:"scheduledDate"`
	ScheduledTime    *string `json:"scheduledTime"`
	DurationEstimate *string `json:"durationEstimate"`
	ParticipantCount *int    `json:"participantCount"`
}

func (s *Server) handlePatchMeeting(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req patchMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := s.store.PatchMeeting(ownerID, r.PathValue("id"), store.MetaPatch{
		Title:            req.Title,
		ScheduledDate:    req.ScheduledDate,
		ScheduledTime:    req.ScheduledTime,
		DurationEstimate: req.DurationEstimate,
		ParticipantCount: req.ParticipantCount,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

type beginUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

func (s *Server) handleBeginUpload(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req beginUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SizeBytes <= 0 {
		s.writeError(w, http.StatusBadRequest, "sizeBytes must be positive")
		return
	}

	sess, err := s.uploads.Begin(ownerID, r.PathValue("id"), req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request, ownerID string) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session query parameter is required")
		return
	}
	offset, err := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
	if err != nil || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "offset query parameter must be a non-negative integer")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read chunk body")
		return
	}

	sess, err := s.uploads.Ingest(ownerID, sessionID, offset, data)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"bytesReceived":  sess.BytesReceived,
		"bytesExpected":  sess.BytesExpected,
		"uploadProgress": sess.Progress(),
	})
}

func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request, ownerID string) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session query parameter is required")
		return
	}

	m, err := s.uploads.Complete(r.Context(), ownerID, sessionID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, m)
}

func (s *Server) handleCancelUpload(w http.ResponseWriter, r *http.Request, ownerID string) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session query parameter is required")
		return
	}
	if err := s.uploads.Cancel(ownerID, sessionID); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	State          domain.MeetingState `json:"state"`
	UploadProgress *float64            `json:"uploadProgress,omitempty"`
	JobAttempt     int                 `json:"jobAttempt,omitempty"`
	FailureReason  string              `json:"failureReason,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, ownerID string) {
	m, err := s.store.GetMeeting(ownerID, r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}

	resp := statusResponse{State: m.State}
	if sess, ok := s.uploads.Progress(m.ID); ok {
		p := sess.Progress()
		resp.UploadProgress = &p
	}
	if m.CurrentJobID != "" {
		if job, err := s.store.GetJob(m.CurrentJobID); err == nil {
			resp.JobAttempt = job.Attempt
		}
	}
	if m.State == domain.MeetingStateProcessingFailed || m.State == domain.MeetingStateUploadFailed {
		resp.FailureReason = m.LastFailureReason
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, ownerID string) {
	m, err := s.store.GetMeeting(ownerID, r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}

	switch m.State {
	case domain.MeetingStateProcessed:
		report, ok := s.store.Report(m.ID)
		if !ok {
			s.fail(w, fmt.Errorf("meeting %s is processed but has no report", m.ID))
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	case domain.MeetingStateProcessingFailed:
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"state": string(m.State),
			"error": m.LastFailureReason,
		})
	default:
		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"state": string(m.State),
			"error": domain.ErrNotReady.Error(),
		})
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, ownerID string) {
	m, err := s.store.GetMeeting(ownerID, r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if m.State != domain.MeetingStateProcessed {
		s.fail(w, fmt.Errorf("%w: meeting is %s", domain.ErrNotReady, m.State))
		return
	}
	report, ok := s.store.Report(m.ID)
	if !ok {
		s.fail(w, fmt.Errorf("meeting %s is processed but has no report", m.ID))
		return
	}

	data, err := export.Workbook(m, report)
	if err != nil {
		s.fail(w, fmt.Errorf("render workbook: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "meeting-summary-"+m.ID+".xlsx"))
	w.Write(data)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request, ownerID string) {
	m, err := s.store.GetMeeting(ownerID, r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}

	job, err := s.manager.Enqueue(m.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, ownerID string) {
	if err := s.manager.Cancel(ownerID, r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
