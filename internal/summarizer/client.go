package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/domain"
)

// Client talks to an external summarization service over HTTP:
// publish the recording reference, poll until the service reports a
// final status, then download the structured summary.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

func NewClient(baseURL string, timeout time.Duration, log *logrus.Entry) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.WithField("module", "summarizer"),
	}
}

type publishResponse struct {
	Code   int    `json:"code"`
	TaskID string `json:"taskId"`
	Reason string `json:"reason,omitempty"`
}

type statusResponse struct {
	Status    string `json:"status"` // Queued, Processing, Success, Failed
	ResultURL string `json:"resultUrl,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
}

// Summarize runs publish -> poll -> download. Classified failures come
// back as *Failure so the job manager can pick a retry policy.
func (c *Client) Summarize(ctx context.Context, recordingRef string) (domain.SummaryReport, error) {
	log := c.log.WithField("recording_ref", recordingRef)
	log.Info("starting summarization")

	taskID, err := c.publish(ctx, recordingRef)
	if err != nil {
		return domain.SummaryReport{}, err
	}

	resultURL, err := c.pollUntilDone(ctx, taskID, log)
	if err != nil {
		return domain.SummaryReport{}, err
	}

	log.WithField("result_url", resultURL).Info("summary ready, downloading")
	return c.download(ctx, resultURL)
}

// publish submits the recording reference for summarization.
func (c *Client) publish(ctx context.Context, recordingRef string) (string, error) {
	body := fmt.Sprintf(`{"recordingRef":%q}`, recordingRef)

	var resp publishResponse
	err := c.doJSONRequest(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return "", Transient(fmt.Sprintf("publish rejected: code=%d reason=%s", resp.Code, resp.Reason))
	}
	if resp.TaskID == "" {
		return "", Transient("publish response missing taskId")
	}
	return resp.TaskID, nil
}

// pollUntilDone checks task status until Success or Failed. The ctx
// deadline bounds total polling time.
func (c *Client) pollUntilDone(ctx context.Context, taskID string, log *logrus.Entry) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", Transient("summarization timed out")
		case <-time.After(1500 * time.Millisecond):
		}

		u, _ := url.Parse(c.baseURL + "/status")
		q := u.Query()
		q.Set("taskId", taskID)
		u.RawQuery = q.Encode()

		var s statusResponse
		err := c.doJSONRequest(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}, &s)
		if err != nil {
			log.WithField("error", err.Error()).Warn("status poll failed")
			continue
		}

		log.WithFields(logrus.Fields{"task_id": taskID, "status": s.Status}).Debug("polled summarizer")

		switch s.Status {
		case "Success":
			return s.ResultURL, nil
		case "Queued", "Processing":
			continue
		case "Failed":
			if s.Permanent {
				return "", Terminal(s.Reason)
			}
			return "", Transient(s.Reason)
		default:
			return "", Transient(fmt.Sprintf("unknown status %q", s.Status))
		}
	}
}

// download fetches and decodes the structured summary.
func (c *Client) download(ctx context.Context, resultURL string) (domain.SummaryReport, error) {
	var report domain.SummaryReport
	err := c.doJSONRequest(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	}, &report)
	if err != nil {
		return domain.SummaryReport{}, err
	}
	if report.Overview == "" {
		return domain.SummaryReport{}, Terminal("summary has no overview; media likely unintelligible")
	}
	return report, nil
}

// doJSONRequest performs one exchange with exponential backoff around
// transport and 5xx errors. 4xx responses are terminal. Requests are
// rebuilt per try so bodies are never replayed from a drained reader.
func (c *Client) doJSONRequest(ctx context.Context, newReq func() (*http.Request, error), target interface{}) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)

	var lastErr error
	operation := func() error {
		req, err := newReq()
		if err != nil {
			lastErr = Transient(err.Error())
			return backoff.Permanent(lastErr)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = Transient(err.Error())
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			lastErr = Transient(fmt.Sprintf("summarizer server error: %s", strings.TrimSpace(string(body))))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = Terminal(fmt.Sprintf("summarizer rejected request: %s", strings.TrimSpace(string(body))))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = Transient(fmt.Sprintf("decode summarizer response: %v", err))
			return lastErr
		}
		lastErr = nil
		return nil
	}

	if err := backoff.Retry(operation, bo); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return Transient(err.Error())
	}
	return nil
}
