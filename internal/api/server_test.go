package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meeting-insights-go/internal/blob"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/domain"
	"meeting-insights-go/internal/jobs"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/store"
	"meeting-insights-go/internal/summarizer"
	"meeting-insights-go/internal/upload"
)

type fixture struct {
	handler http.Handler
	store   *store.Store
	manager *jobs.Manager
}

func newFixture(t *testing.T, sum summarizer.Summarizer) *fixture {
	t.Helper()

	log := logger.New("error")
	st := store.New()

	jobsCfg := config.JobsConfig{
		MaxAttempts:    3,
		MaxConcurrent:  2,
		Timeout:        config.Duration(5 * time.Second),
		BackoffInitial: config.Duration(time.Millisecond),
	}
	uploadCfg := config.UploadConfig{
		MaxSizeBytes: 500 << 20,
		AllowedTypes: []string{"video/mp4", "audio/mpeg"},
		SessionTTL:   config.Duration(time.Hour),
	}

	manager := jobs.NewManager(st, sum, jobsCfg, log.Entry)
	t.Cleanup(manager.Shutdown)
	uploads := upload.NewController(st, blob.NewMemory(), manager, uploadCfg, log.Entry)

	return &fixture{
		handler: NewServer(st, uploads, manager, log).Handler(),
		store:   st,
		manager: manager,
	}
}

func (f *fixture) do(t *testing.T, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createMeeting(t *testing.T, owner string) domain.Meeting {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/meetings", owner, map[string]interface{}{
		"title":            "Q4 Planning",
		"scheduledDate":    "2026-03-15",
		"scheduledTime":    "14:00",
		"participantCount": 8,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create meeting status = %d body = %s", rec.Code, rec.Body)
	}
	var m domain.Meeting
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode meeting: %v", err)
	}
	return m
}

// uploadRecording drives begin -> chunk -> complete for a payload.
func (f *fixture) uploadRecording(t *testing.T, owner, meetingID string, payload []byte) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/meetings/"+meetingID+"/upload", owner, map[string]interface{}{
		"fileName":    "recording.mp4",
		"contentType": "video/mp4",
		"sizeBytes":   len(payload),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("begin upload status = %d body = %s", rec.Code, rec.Body)
	}
	var sess domain.UploadSession
	json.Unmarshal(rec.Body.Bytes(), &sess)

	rec = f.do(t, http.MethodPost,
		fmt.Sprintf("/meetings/%s/upload/chunk?session=%s&offset=0", meetingID, sess.ID),
		owner, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("chunk status = %d body = %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodPost,
		fmt.Sprintf("/meetings/%s/upload/complete?session=%s", meetingID, sess.ID),
		owner, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("complete status = %d body = %s", rec.Code, rec.Body)
	}
}

func (f *fixture) waitForState(t *testing.T, owner, meetingID string, want domain.MeetingState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m, err := f.store.GetMeeting(owner, meetingID)
		if err == nil && m.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	m, _ := f.store.GetMeeting(owner, meetingID)
	t.Fatalf("meeting never reached %s, stuck at %s", want, m.State)
}

func TestUploadToProcessedFlow(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})
	m := f.createMeeting(t, "owner-1")

	f.uploadRecording(t, "owner-1", m.ID, bytes.Repeat([]byte("a"), 10<<20))
	f.waitForState(t, "owner-1", m.ID, domain.MeetingStateProcessed)

	rec := f.do(t, http.MethodGet, "/meetings/"+m.ID+"/summary", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d body = %s", rec.Code, rec.Body)
	}
	var report domain.SummaryReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Overview == "" || len(report.KeyPoints) == 0 {
		t.Fatalf("report incomplete: %+v", report)
	}
}

func TestUnknownMeetingIs404(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})

	for _, path := range []string{
		"/meetings/nope", "/meetings/nope/status", "/meetings/nope/summary",
	} {
		if rec := f.do(t, http.MethodGet, path, "owner-1", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestMissingOwnerHeaderIs400(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})

	if rec := f.do(t, http.MethodGet, "/meetings", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBeginUploadRejections(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})
	m := f.createMeeting(t, "owner-1")

	rec := f.do(t, http.MethodPost, "/meetings/"+m.ID+"/upload", "owner-1", map[string]interface{}{
		"fileName": "notes.pdf", "contentType": "application/pdf", "sizeBytes": 100,
	})
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("pdf upload status = %d, want 415", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/meetings/"+m.ID+"/upload", "owner-1", map[string]interface{}{
		"fileName": "big.mp4", "contentType": "video/mp4", "sizeBytes": 600 << 20,
	})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized upload status = %d, want 413", rec.Code)
	}

	// Meeting stayed draft through both rejections.
	got, _ := f.store.GetMeeting("owner-1", m.ID)
	if got.State != domain.MeetingStateDraft {
		t.Fatalf("state = %s, want draft", got.State)
	}
}

func TestConcurrentUploadIs409(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})
	m := f.createMeeting(t, "owner-1")

	begin := map[string]interface{}{"fileName": "a.mp4", "contentType": "video/mp4", "sizeBytes": 100}
	if rec := f.do(t, http.MethodPost, "/meetings/"+m.ID+"/upload", "owner-1", begin); rec.Code != http.StatusCreated {
		t.Fatalf("first begin status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/meetings/"+m.ID+"/upload", "owner-1", begin); rec.Code != http.StatusConflict {
		t.Fatalf("second begin status = %d, want 409", rec.Code)
	}
}

func TestSummaryNotReadyAndFailed(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{Fail: summarizer.Terminal("unintelligible audio")})
	m := f.createMeeting(t, "owner-1")

	// Draft meeting: summary not ready yet.
	rec := f.do(t, http.MethodGet, "/meetings/"+m.ID+"/summary", "owner-1", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("summary on draft status = %d, want 202", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not ready") {
		t.Fatalf("body = %s, want not-ready marker", rec.Body)
	}

	f.uploadRecording(t, "owner-1", m.ID, []byte("payload"))
	f.waitForState(t, "owner-1", m.ID, domain.MeetingStateProcessingFailed)

	rec = f.do(t, http.MethodGet, "/meetings/"+m.ID+"/summary", "owner-1", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("summary on failed status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unintelligible audio") {
		t.Fatalf("body = %s, want stored failure reason", rec.Body)
	}
}

func TestStatusReportsUploadProgress(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})
	m := f.createMeeting(t, "owner-1")

	rec := f.do(t, http.MethodPost, "/meetings/"+m.ID+"/upload", "owner-1", map[string]interface{}{
		"fileName": "a.mp4", "contentType": "video/mp4", "sizeBytes": 100,
	})
	var sess domain.UploadSession
	json.Unmarshal(rec.Body.Bytes(), &sess)

	f.do(t, http.MethodPost,
		fmt.Sprintf("/meetings/%s/upload/chunk?session=%s&offset=0", m.ID, sess.ID),
		"owner-1", bytes.Repeat([]byte("x"), 25))

	rec = f.do(t, http.MethodGet, "/meetings/"+m.ID+"/status", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var status struct {
		State          domain.MeetingState `json:"state"`
		UploadProgress *float64            `json:"uploadProgress"`
	}
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.State != domain.MeetingStateUploading {
		t.Fatalf("state = %s, want uploading", status.State)
	}
	if status.UploadProgress == nil || *status.UploadProgress != 25 {
		t.Fatalf("uploadProgress = %v, want 25", status.UploadProgress)
	}
}

func TestRetryAfterFailure(t *testing.T) {
	mock := &summarizer.Mock{Fail: summarizer.Terminal("corrupt media")}
	f := newFixture(t, mock)
	m := f.createMeeting(t, "owner-1")

	f.uploadRecording(t, "owner-1", m.ID, []byte("payload"))
	f.waitForState(t, "owner-1", m.ID, domain.MeetingStateProcessingFailed)

	mock.Fail = nil
	rec := f.do(t, http.MethodPost, "/meetings/"+m.ID+"/retry", "owner-1", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("retry status = %d body = %s", rec.Code, rec.Body)
	}
	f.waitForState(t, "owner-1", m.ID, domain.MeetingStateProcessed)
}

func TestRetryDraftMeetingIs409(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})
	m := f.createMeeting(t, "owner-1")

	if rec := f.do(t, http.MethodPost, "/meetings/"+m.ID+"/retry", "owner-1", nil); rec.Code != http.StatusConflict {
		t.Fatalf("retry draft status = %d, want 409", rec.Code)
	}
}

func TestMeetingsScopedByOwner(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})
	m := f.createMeeting(t, "owner-1")

	if rec := f.do(t, http.MethodGet, "/meetings/"+m.ID, "owner-2", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign read status = %d, want 404", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/meetings", "owner-2", nil)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" && body != "null" {
		t.Fatalf("foreign list body = %s, want empty", body)
	}
}

func TestExportProcessedMeeting(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})
	m := f.createMeeting(t, "owner-1")
	f.uploadRecording(t, "owner-1", m.ID, []byte("payload"))
	f.waitForState(t, "owner-1", m.ID, domain.MeetingStateProcessed)

	rec := f.do(t, http.MethodGet, "/meetings/"+m.ID+"/export", "owner-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("content type = %s", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty workbook")
	}
}

func TestPatchMeetingBeforeAndAfterUpload(t *testing.T) {
	f := newFixture(t, &summarizer.Mock{})
	m := f.createMeeting(t, "owner-1")

	rec := f.do(t, http.MethodPatch, "/meetings/"+m.ID, "owner-1", map[string]interface{}{"title": "Renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}

	f.uploadRecording(t, "owner-1", m.ID, []byte("payload"))
	f.waitForState(t, "owner-1", m.ID, domain.MeetingStateProcessed)

	rec = f.do(t, http.MethodPatch, "/meetings/"+m.ID, "owner-1", map[string]interface{}{"title": "Too Late"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("patch after processing status = %d, want 409", rec.Code)
	}
}
