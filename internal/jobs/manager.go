package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/domain"
	"meeting-insights-go/internal/store"
	"meeting-insights-go/internal/summarizer"
)

// Manager sequences summarization jobs: it owns the queued -> running ->
// succeeded/failed edges of the meeting state machine, retries transient
// summarizer failures with exponential backoff, and enforces the
// at-most-one-active-job rule. Enqueue returns immediately; execution
// happens on bounded background workers.
type Manager struct {
	store *store.Store
	sum   summarizer.Summarizer
	cfg   config.JobsConfig
	log   *logrus.Entry
	sem   *semaphore

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // by job id
	wg      sync.WaitGroup
}

func NewManager(st *store.Store, sum summarizer.Summarizer, cfg config.JobsConfig, log *logrus.Entry) *Manager {
	return &Manager{
		store:   st,
		sum:     sum,
		cfg:     cfg,
		log:     log.WithField("component", "jobs"),
		sem:     newSemaphore(cfg.MaxConcurrent),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Enqueue creates and starts a processing job for the meeting. It is an
// idempotent no-op when a job is already active or the meeting is
// already processed: the existing or most recent job comes back instead
// of a duplicate. Meetings without a stored recording conflict.
func (m *Manager) Enqueue(meetingID string) (domain.ProcessingJob, error) {
	meeting, err := m.store.MeetingByID(meetingID)
	if err != nil {
		return domain.ProcessingJob{}, err
	}

	if active, ok := m.store.ActiveJob(meetingID); ok {
		return active, nil
	}

	switch meeting.State {
	case domain.MeetingStateQueued:
		// Upload just completed; fall through to job creation.
	case domain.MeetingStateProcessing, domain.MeetingStateProcessed:
		job, err := m.store.GetJob(meeting.CurrentJobID)
		if err != nil {
			return domain.ProcessingJob{}, err
		}
		return job, nil
	case domain.MeetingStateProcessingFailed:
		if _, err := m.store.Transition(meetingID, domain.MeetingStateQueued, domain.MeetingStateProcessingFailed); err != nil {
			return domain.ProcessingJob{}, err
		}
	default:
		return domain.ProcessingJob{}, fmt.Errorf("%w: meeting %s has no recording to process (state %s)",
			domain.ErrConflict, meetingID, meeting.State)
	}

	job, err := m.store.CreateJob(meetingID)
	if err != nil {
		// Lost a race with a concurrent enqueue; the winner's job
		// satisfies this caller too.
		if errors.Is(err, domain.ErrConflict) {
			return job, nil
		}
		return domain.ProcessingJob{}, err
	}

	m.wg.Add(1)
	go m.run(job)

	m.log.WithFields(logrus.Fields{
		"meeting_id": meetingID,
		"job_id":     job.ID,
		"attempt":    job.Attempt,
	}).Info("job enqueued")
	return job, nil
}

// Cancel aborts the meeting's active job. Cancellation is best-effort
// toward the summarizer but authoritative on pipeline state.
func (m *Manager) Cancel(ownerID, meetingID string) error {
	if _, err := m.store.GetMeeting(ownerID, meetingID); err != nil {
		return err
	}
	active, ok := m.store.ActiveJob(meetingID)
	if !ok {
		return fmt.Errorf("%w: no active job for meeting %s", domain.ErrConflict, meetingID)
	}

	m.mu.Lock()
	cancel, ok := m.cancels[active.ID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// Shutdown cancels all in-flight jobs and waits for workers to settle.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// run executes one job to a terminal state. Every mutation re-enters the
// store's compare-and-set discipline, so a duplicate or late completion
// signal can never regress a meeting another signal already settled.
func (m *Manager) run(job domain.ProcessingJob) {
	defer m.wg.Done()

	log := m.log.WithFields(logrus.Fields{"meeting_id": job.MeetingID, "job_id": job.ID})

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout.Std())
	defer cancel()

	m.mu.Lock()
	m.cancels[job.ID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, job.ID)
		m.mu.Unlock()
	}()

	if err := m.sem.acquire(ctx); err != nil {
		m.settleFailure(ctx, job, summarizer.Transient("timeout"), log)
		return
	}
	defer m.sem.release()

	started, err := m.store.StartJob(job.MeetingID, job.ID)
	if err != nil {
		log.WithField("error", err.Error()).Warn("job could not start")
		return
	}
	job = started
	log.WithField("attempt", job.Attempt).Info("job running")

	meeting, err := m.store.MeetingByID(job.MeetingID)
	if err != nil {
		m.settleFailure(ctx, job, summarizer.Terminal("meeting record missing"), log)
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.BackoffInitial.Std()
	bo.MaxElapsedTime = 0 // the job ctx deadline bounds us instead

	var lastErr error
	for try := 0; try < m.cfg.MaxAttempts; try++ {
		if try > 0 {
			attempt, err := m.store.BumpAttempt(job.ID)
			if err != nil {
				log.WithField("error", err.Error()).Warn("job superseded mid-retry")
				return
			}
			job.Attempt = attempt

			select {
			case <-ctx.Done():
				m.settleFailure(ctx, job, lastErr, log)
				return
			case <-time.After(bo.NextBackOff()):
			}
		}

		report, err := m.sum.Summarize(ctx, meeting.RecordingRef)
		if err == nil {
			if cerr := m.store.CompleteJob(job.MeetingID, job.ID, report); cerr != nil {
				log.WithField("error", cerr.Error()).Warn("completion signal lost to a newer transition")
				return
			}
			log.WithField("attempt", job.Attempt).Info("job succeeded")
			return
		}

		lastErr = err
		if ctx.Err() != nil || summarizer.IsTerminal(err) {
			break
		}
		log.WithFields(logrus.Fields{"attempt": job.Attempt, "error": err.Error()}).
			Warn("transient summarizer failure")
	}

	m.settleFailure(ctx, job, lastErr, log)
}

// settleFailure records the terminal failure state, translating context
// errors into the documented reasons.
func (m *Manager) settleFailure(ctx context.Context, job domain.ProcessingJob, cause error, log *logrus.Entry) {
	reason := "summarization failed"
	cancelled := false

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		reason = "cancelled"
		cancelled = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		reason = "timeout"
	case cause != nil:
		reason = summarizer.Reason(cause)
	}

	if err := m.store.FailJob(job.MeetingID, job.ID, reason, cancelled); err != nil {
		log.WithField("error", err.Error()).Warn("failure signal lost to a newer transition")
		return
	}
	log.WithFields(logrus.Fields{"attempt": job.Attempt, "reason": reason}).Info("job failed")
}
