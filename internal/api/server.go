package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"meeting-insights-go/internal/domain"
	"meeting-insights-go/internal/jobs"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/store"
	"meeting-insights-go/internal/upload"
)

// Server is the consumer-facing read/write surface the dashboard polls.
// It never blocks on in-flight summarizer work; everything it returns
// reflects the latest committed transition.
type Server struct {
	store   *store.Store
	uploads *upload.Controller
	manager *jobs.Manager
	log     *logger.Logger
}

func NewServer(st *store.Store, uploads *upload.Controller, manager *jobs.Manager, log *logger.Logger) *Server {
	return &Server{store: st, uploads: uploads, manager: manager, log: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /meetings", s.withOwner(s.handleCreateMeeting))
	mux.HandleFunc("GET /meetings", s.withOwner(s.handleListMeetings))
	mux.HandleFunc("GET /meetings/{id}", s.withOwner(s.handleGetMeeting))
	mux.HandleFunc("PATCH /meetings/{id}", s.withOwner(s.handlePatchMeeting))
	mux.HandleFunc("POST /meetings/{id}/upload", s.withOwner(s.handleBeginUpload))
	mux.HandleFunc("POST /meetings/{id}/upload/chunk", s.withOwner(s.handleUploadChunk))
	mux.HandleFunc("POST /meetings/{id}/upload/complete", s.withOwner(s.handleCompleteUpload))
	mux.HandleFunc("DELETE /meetings/{id}/upload", s.withOwner(s.handleCancelUpload))
	mux.HandleFunc("GET /meetings/{id}/status", s.withOwner(s.handleStatus))
	mux.HandleFunc("GET /meetings/{id}/summary", s.withOwner(s.handleSummary))
	mux.HandleFunc("GET /meetings/{id}/export", s.withOwner(s.handleExport))
	mux.HandleFunc("POST /meetings/{id}/retry", s.withOwner(s.handleRetry))
	mux.HandleFunc("DELETE /meetings/{id}/job", s.withOwner(s.handleCancelJob))

	return mux
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withOwner extracts the caller identity. Authentication itself lives
// upstream; every read and write here is scoped by this id.
func (s *Server) withOwner(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.Header.Get("X-Owner-ID")
		if ownerID == "" {
			s.writeError(w, http.StatusBadRequest, "missing X-Owner-ID header")
			return
		}
		s.log.WithRequest(r).Debug("request received")
		next(w, r, ownerID)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps the domain error taxonomy onto HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidChunk):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrIncompleteTransfer),
		errors.Is(err, domain.ErrNotReady),
		errors.Is(err, domain.ErrStaleTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	s.writeError(w, status, err.Error())
}
