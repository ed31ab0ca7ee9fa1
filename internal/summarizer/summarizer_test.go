package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"meeting-insights-go/internal/logger"
)

func TestFailureClassification(t *testing.T) {
	if IsTerminal(Transient("timeout")) {
		t.Fatal("transient classified terminal")
	}
	if !IsTerminal(Terminal("unsupported format")) {
		t.Fatal("terminal classified transient")
	}
	if IsTerminal(errors.New("plain error")) {
		t.Fatal("unclassified error must count as transient")
	}
	if got := Reason(Terminal("corrupt media")); got != "corrupt media" {
		t.Fatalf("reason = %q", got)
	}

	wrapped := fmt.Errorf("run summarizer: %w", Terminal("bad codec"))
	if !IsTerminal(wrapped) {
		t.Fatal("wrapped terminal failure lost its class")
	}
}

func TestClientSummarizeSuccess(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()

	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("POST /summarize", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 200, "taskId": "task-1"})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("taskId") != "task-1" {
			http.Error(w, "unknown task", http.StatusNotFound)
			return
		}
		if atomic.AddInt32(&polls, 1) < 2 {
			json.NewEncoder(w).Encode(map[string]string{"status": "Processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "Success",
			"resultUrl": srv.URL + "/result",
		})
	})
	mux.HandleFunc("GET /result", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"overview":  "recap",
			"keyPoints": []string{"alpha", "beta"},
		})
	})

	c := NewClient(srv.URL, 5*time.Second, logger.New("error").Entry)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := c.Summarize(ctx, "blob-ref-1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if report.Overview != "recap" || len(report.KeyPoints) != 2 || report.KeyPoints[0] != "alpha" {
		t.Fatalf("report = %+v", report)
	}
}

func TestClientClassifiesPermanentFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /summarize", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 200, "taskId": "task-1"})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "Failed",
			"reason":    "unsupported format",
			"permanent": true,
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, logger.New("error").Entry)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := c.Summarize(ctx, "blob-ref-1")
	if !IsTerminal(err) {
		t.Fatalf("error = %v, want terminal failure", err)
	}
	if got := Reason(err); got != "unsupported format" {
		t.Fatalf("reason = %q", got)
	}
}

func TestMockFailurePassthrough(t *testing.T) {
	m := &Mock{Fail: Transient("resource exhausted")}
	if _, err := m.Summarize(context.Background(), "ref"); !errors.Is(err, m.Fail) {
		t.Fatalf("error = %v, want configured failure", err)
	}

	m.Fail = nil
	report, err := m.Summarize(context.Background(), "ref")
	if err != nil || report.Overview == "" {
		t.Fatalf("mock success = %+v, %v", report, err)
	}
}
