package jobs

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/five82/ember/internal/fireshare"
)

// StatusTimedOut is the client-side terminal state for jobs that outlive
// Policy.MaxDuration without the server reporting completed or failed.
const StatusTimedOut fireshare.JobStatus = "timed_out"

// Job is an upload whose video is still being processed by the server.
type Job struct {
	JobID     string
	VideoID   string
	Title     string
	StartedAt time.Time

	Status   fireshare.JobStatus
	Progress int
	Err      string
}

// Policy controls how often jobs are polled and when they are given up on.
type Policy struct {
	Interval    time.Duration // delay between polls while healthy
	MaxInterval time.Duration // backoff cap after request errors
	MaxDuration time.Duration // zero disables the timeout
	GraceDelay  time.Duration // how long a completed job stays listed
}

// DefaultPolicy polls every 3s and gives up after 30 minutes.
func DefaultPolicy() Policy {
	return Policy{
		Interval:    3 * time.Second,
		MaxInterval: 30 * time.Second,
		MaxDuration: 30 * time.Minute,
		GraceDelay:  time.Second,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	if p.MaxInterval < p.Interval {
		p.MaxInterval = p.Interval
	}
	if p.MaxDuration < 0 {
		p.MaxDuration = 0
	}
	if p.GraceDelay < 0 {
		p.GraceDelay = 0
	}
	return p
}

// Options wires callbacks into a Tracker. Callbacks run on the job's poll
// goroutine, never while the tracker lock is held.
type Options struct {
	Policy Policy

	// OnComplete receives the video id of a job the server finished.
	OnComplete func(videoID string)
	// OnFailed receives jobs that failed or timed out.
	OnFailed func(Job)
	// OnChange fires after any observable change to Jobs().
	OnChange func()

	Now func() time.Time
}

// Tracker is a registry of in-flight processing jobs. Each job is polled
// sequentially on its own goroutine until it reaches a terminal status.
type Tracker struct {
	fetcher fireshare.StatusFetcher
	opts    Options
	policy  Policy

	mu      sync.Mutex
	order   []string
	entries map[string]*entry
	wg      sync.WaitGroup
}

type entry struct {
	job     Job
	polling bool
	cancel  context.CancelFunc
	removal *time.Timer
}

// NewTracker returns a Tracker that polls through fetcher.
func NewTracker(fetcher fireshare.StatusFetcher, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		fetcher: fetcher,
		opts:    opts,
		policy:  opts.Policy.normalized(),
		entries: map[string]*entry{},
	}
}

// Register adds job and starts polling it. It returns false when the job is
// incomplete or a job for the same video is already registered. Cancelling ctx
// stops the poll loop and drops the job.
func (t *Tracker) Register(ctx context.Context, job Job) bool {
	job.JobID = strings.TrimSpace(job.JobID)
	job.VideoID = strings.TrimSpace(job.VideoID)
	if job.JobID == "" || job.VideoID == "" {
		return false
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = t.opts.Now()
	}
	if job.Status == "" {
		job.Status = fireshare.JobQueued
	}

	t.mu.Lock()
	for _, e := range t.entries {
		if e.job.VideoID == job.VideoID {
			t.mu.Unlock()
			return false
		}
	}
	if _, exists := t.entries[job.JobID]; exists {
		t.mu.Unlock()
		return false
	}
	pollCtx, cancel := context.WithCancel(ctx)
	e := &entry{job: job, polling: true, cancel: cancel}
	t.entries[job.JobID] = e
	t.order = append(t.order, job.JobID)
	t.wg.Add(1)
	t.mu.Unlock()

	go t.run(pollCtx, e)
	t.changed()
	return true
}

// Jobs returns the registered jobs in registration order.
func (t *Tracker) Jobs() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Job, 0, len(t.order))
	for _, id := range t.order {
		if e, ok := t.entries[id]; ok {
			out = append(out, e.job)
		}
	}
	return out
}

// Len returns the number of registered jobs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Polling reports whether jobID still has an active poll loop.
func (t *Tracker) Polling(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[jobID]
	return ok && e.polling
}

// UnregisterAll stops every poll loop and clears the registry. Responses that
// arrive afterwards are discarded.
func (t *Tracker) UnregisterAll() {
	t.mu.Lock()
	hadJobs := len(t.entries) > 0
	for _, e := range t.entries {
		e.polling = false
		e.cancel()
		if e.removal != nil {
			e.removal.Stop()
		}
	}
	t.entries = map[string]*entry{}
	t.order = nil
	t.mu.Unlock()
	if hadJobs {
		t.changed()
	}
}

// Close unregisters all jobs and waits for their poll loops to exit. It must
// not be called from a tracker callback.
func (t *Tracker) Close() {
	t.UnregisterAll()
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context, e *entry) {
	defer t.wg.Done()
	defer e.cancel()

	jobID := e.job.JobID
	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			t.remove(e)
			return
		case <-timer.C:
		}

		if t.expired(e) {
			t.fail(e, fireshare.ProcessingStatus{Status: StatusTimedOut, Error: "processing timed out"})
			return
		}

		status, err := t.fetcher.FetchProcessingStatus(ctx, jobID)
		if ctx.Err() != nil {
			t.remove(e)
			return
		}
		if err != nil {
			failures++
			delay := Backoff(failures, t.policy.Interval, t.policy.MaxInterval)
			log.Printf("processing status %s failed (retry in %s): %v", jobID, delay, err)
			timer.Reset(delay)
			continue
		}
		failures = 0

		switch status.Status {
		case fireshare.JobCompleted:
			t.complete(e, status)
			return
		case fireshare.JobFailed:
			t.fail(e, status)
			return
		default:
			t.update(e, status)
		}
		timer.Reset(t.policy.Interval)
	}
}

func (t *Tracker) expired(e *entry) bool {
	if t.policy.MaxDuration <= 0 {
		return false
	}
	t.mu.Lock()
	started := e.job.StartedAt
	t.mu.Unlock()
	return t.opts.Now().Sub(started) >= t.policy.MaxDuration
}

func (t *Tracker) update(e *entry, status fireshare.ProcessingStatus) {
	t.mu.Lock()
	if t.entries[e.job.JobID] != e {
		t.mu.Unlock()
		return
	}
	changed := e.job.Status != status.Status || e.job.Progress != status.Progress
	if status.Status != "" {
		e.job.Status = status.Status
	}
	e.job.Progress = clampProgress(status.Progress)
	t.mu.Unlock()
	if changed {
		t.changed()
	}
}

func (t *Tracker) complete(e *entry, status fireshare.ProcessingStatus) {
	t.mu.Lock()
	if t.entries[e.job.JobID] != e {
		t.mu.Unlock()
		return
	}
	e.polling = false
	e.job.Status = fireshare.JobCompleted
	e.job.Progress = 100
	videoID := e.job.VideoID
	if status.VideoID != "" && status.VideoID != videoID {
		log.Printf("processing job %s completed as video %s (registered %s)", e.job.JobID, status.VideoID, videoID)
	}
	if t.policy.GraceDelay > 0 {
		e.removal = time.AfterFunc(t.policy.GraceDelay, func() { t.remove(e) })
	}
	t.mu.Unlock()

	if t.opts.OnComplete != nil {
		t.opts.OnComplete(videoID)
	}
	if t.policy.GraceDelay <= 0 {
		t.remove(e)
		return
	}
	t.changed()
}

func (t *Tracker) fail(e *entry, status fireshare.ProcessingStatus) {
	t.mu.Lock()
	if t.entries[e.job.JobID] != e {
		t.mu.Unlock()
		return
	}
	e.polling = false
	e.job.Status = status.Status
	e.job.Err = strings.TrimSpace(status.Error)
	job := e.job
	t.removeLocked(e)
	t.mu.Unlock()

	log.Printf("processing job %s for video %s ended as %s: %s", job.JobID, job.VideoID, job.Status, job.Err)
	if t.opts.OnFailed != nil {
		t.opts.OnFailed(job)
	}
	t.changed()
}

func (t *Tracker) remove(e *entry) {
	t.mu.Lock()
	removed := t.removeLocked(e)
	t.mu.Unlock()
	if removed {
		t.changed()
	}
}

func (t *Tracker) removeLocked(e *entry) bool {
	if t.entries[e.job.JobID] != e {
		return false
	}
	delete(t.entries, e.job.JobID)
	for i, id := range t.order {
		if id == e.job.JobID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *Tracker) changed() {
	if t.opts.OnChange != nil {
		t.opts.OnChange()
	}
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// Backoff doubles base for each consecutive failure, capped at limit.
func Backoff(failures int, base, limit time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= limit {
			return limit
		}
	}
	return backoff
}
