package summarizer

import (
	"context"
	"errors"
	"fmt"

	"meeting-insights-go/internal/domain"
)

// Summarizer turns a stored recording into a structured summary. The
// call is long-running; callers own cancellation via ctx and retry
// policy around it.
type Summarizer interface {
	Summarize(ctx context.Context, recordingRef string) (domain.SummaryReport, error)
}

// Failure is a classified summarizer error. Terminal failures cannot
// succeed on resubmission without external change; transient ones may.
type Failure struct {
	Reason   string
	Terminal bool
}

func (f *Failure) Error() string {
	kind := "transient"
	if f.Terminal {
		kind = "terminal"
	}
	return fmt.Sprintf("summarizer %s failure: %s", kind, f.Reason)
}

// Transient wraps a retryable failure reason.
func Transient(reason string) error {
	return &Failure{Reason: reason}
}

// Terminal wraps a failure that retrying cannot fix.
func Terminal(reason string) error {
	return &Failure{Reason: reason, Terminal: true}
}

// IsTerminal reports whether err is a terminal summarizer failure.
// Unclassified errors count as transient.
func IsTerminal(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Terminal
}

// Reason extracts the human-readable failure reason from err.
func Reason(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return err.Error()
}

// Mock returns a deterministic summary without calling anything.
// Enabled via summarizer.use_mock for offline demos and tests.
type Mock struct {
	// Fail, when set, is returned for every call instead of a report.
	Fail error
}

func (m *Mock) Summarize(_ context.Context, recordingRef string) (domain.SummaryReport, error) {
	if m.Fail != nil {
		return domain.SummaryReport{}, m.Fail
	}
	return domain.SummaryReport{
		Overview: "Planning session covering objectives, budget allocation and staffing.",
		KeyPoints: []string{
			"Budget approved for the new campaign",
			"Launch timeline moved to November 15th",
			"Open lead positions to be filled by October 1st",
		},
		ActionItems: []domain.ActionItem{
			{Task: "Finalize campaign strategy", Assignee: "Owner", Deadline: "in two weeks"},
			{Task: "Post job descriptions", Assignee: "HR", Deadline: "in one week"},
		},
		ImportantDates: []domain.ImportantDate{
			{Event: "Launch", Date: "November 15"},
			{Event: "Hiring deadline", Date: "October 1"},
		},
	}, nil
}
