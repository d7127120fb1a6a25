package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/ember/internal/fireshare"
)

// scriptedFetcher answers each job with its scripted statuses in order and
// repeats the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	scripts map[string][]result
	calls   map[string]int
}

type result struct {
	status fireshare.ProcessingStatus
	err    error
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{scripts: map[string][]result{}, calls: map[string]int{}}
}

func (f *scriptedFetcher) script(jobID string, results ...result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[jobID] = results
}

func (f *scriptedFetcher) FetchProcessingStatus(_ context.Context, jobID string) (fireshare.ProcessingStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[jobID]
	f.calls[jobID]++
	script := f.scripts[jobID]
	if len(script) == 0 {
		return fireshare.ProcessingStatus{Status: fireshare.JobProcessing}, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n].status, script[n].err
}

func (f *scriptedFetcher) count(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[jobID]
}

func status(s fireshare.JobStatus, progress int) result {
	return result{status: fireshare.ProcessingStatus{Status: s, Progress: progress}}
}

func fastPolicy() Policy {
	return Policy{
		Interval:    5 * time.Millisecond,
		MaxInterval: 20 * time.Millisecond,
		GraceDelay:  100 * time.Millisecond,
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestTracker_CompletedJobStopsPolling(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.script("j1", status(fireshare.JobProcessing, 40), status(fireshare.JobCompleted, 100))

	completed := make(chan string, 1)
	tr := NewTracker(fetcher, Options{
		Policy:     fastPolicy(),
		OnComplete: func(videoID string) { completed <- videoID },
	})
	t.Cleanup(tr.Close)

	if !tr.Register(context.Background(), Job{JobID: "j1", VideoID: "v1", Title: "Clip"}) {
		t.Fatalf("Register returned false")
	}

	select {
	case id := <-completed:
		if id != "v1" {
			t.Fatalf("OnComplete video = %q, want v1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnComplete never fired")
	}

	if tr.Polling("j1") {
		t.Fatalf("Polling(j1) = true after completion")
	}
	calls := fetcher.count("j1")
	if calls != 2 {
		t.Fatalf("status requests = %d, want 2", calls)
	}

	// The job lingers for the grace delay, then disappears.
	if jobs := tr.Jobs(); len(jobs) != 1 || jobs[0].Status != fireshare.JobCompleted || jobs[0].Progress != 100 {
		t.Fatalf("Jobs during grace = %#v, want completed j1", jobs)
	}
	eventually(t, "job removal", func() bool { return tr.Len() == 0 })

	time.Sleep(30 * time.Millisecond)
	if got := fetcher.count("j1"); got != calls {
		t.Fatalf("status requests after completion = %d, want %d", got, calls)
	}
}

func TestTracker_RegisterIgnoresDuplicateVideo(t *testing.T) {
	fetcher := newScriptedFetcher()
	tr := NewTracker(fetcher, Options{Policy: fastPolicy()})
	t.Cleanup(tr.Close)

	ctx := context.Background()
	if !tr.Register(ctx, Job{JobID: "j1", VideoID: "v1"}) {
		t.Fatalf("first Register returned false")
	}
	if tr.Register(ctx, Job{JobID: "j2", VideoID: "v1"}) {
		t.Fatalf("Register with duplicate video returned true")
	}
	if tr.Register(ctx, Job{JobID: "", VideoID: "v2"}) {
		t.Fatalf("Register without job id returned true")
	}
	if !tr.Register(ctx, Job{JobID: "j3", VideoID: "v3"}) {
		t.Fatalf("Register for new video returned false")
	}

	jobs := tr.Jobs()
	if len(jobs) != 2 || jobs[0].JobID != "j1" || jobs[1].JobID != "j3" {
		t.Fatalf("Jobs = %#v, want j1 then j3", jobs)
	}
	if jobs[0].StartedAt.IsZero() {
		t.Fatalf("StartedAt not defaulted: %#v", jobs[0])
	}
}

func TestTracker_FailedJobIsRemovedAndReported(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.script("j1",
		status(fireshare.JobQueued, 0),
		result{status: fireshare.ProcessingStatus{Status: fireshare.JobFailed, Error: "ffmpeg exited 1"}},
	)

	failed := make(chan Job, 1)
	tr := NewTracker(fetcher, Options{
		Policy:   fastPolicy(),
		OnFailed: func(j Job) { failed <- j },
	})
	t.Cleanup(tr.Close)
	tr.Register(context.Background(), Job{JobID: "j1", VideoID: "v1", Title: "Clip"})

	select {
	case j := <-failed:
		if j.Status != fireshare.JobFailed || j.Err != "ffmpeg exited 1" || j.Title != "Clip" {
			t.Fatalf("failed job = %#v", j)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("OnFailed never fired")
	}
	if tr.Len() != 0 {
		t.Fatalf("Len = %d after failure, want 0", tr.Len())
	}
}

func TestTracker_RequestErrorsKeepPolling(t *testing.T) {
	fetcher := newScriptedFetcher()
	boom := errors.New("connection refused")
	fetcher.script("j1",
		result{err: boom},
		result{err: boom},
		status(fireshare.JobProcessing, 10),
		status(fireshare.JobCompleted, 100),
	)

	completed := make(chan string, 1)
	tr := NewTracker(fetcher, Options{
		Policy:     fastPolicy(),
		OnComplete: func(videoID string) { completed <- videoID },
	})
	t.Cleanup(tr.Close)
	tr.Register(context.Background(), Job{JobID: "j1", VideoID: "v1"})

	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatalf("job never completed after transient errors")
	}
	if got := fetcher.count("j1"); got != 4 {
		t.Fatalf("status requests = %d, want 4", got)
	}
}

func TestTracker_TimesOutStuckJobs(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.script("j1", status(fireshare.JobProcessing, 50))

	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	failed := make(chan Job, 1)
	policy := fastPolicy()
	policy.MaxDuration = time.Minute
	tr := NewTracker(fetcher, Options{
		Policy:   policy,
		OnFailed: func(j Job) { failed <- j },
		Now:      clock,
	})
	t.Cleanup(tr.Close)
	tr.Register(context.Background(), Job{JobID: "j1", VideoID: "v1"})

	eventually(t, "first poll", func() bool { return fetcher.count("j1") > 0 })
	advance(2 * time.Minute)

	select {
	case j := <-failed:
		if j.Status != StatusTimedOut {
			t.Fatalf("status = %q, want %q", j.Status, StatusTimedOut)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job never timed out")
	}
	if tr.Polling("j1") {
		t.Fatalf("Polling(j1) = true after timeout")
	}
}

func TestTracker_UnregisterAllStopsPolling(t *testing.T) {
	fetcher := newScriptedFetcher()
	tr := NewTracker(fetcher, Options{Policy: fastPolicy()})
	tr.Register(context.Background(), Job{JobID: "j1", VideoID: "v1"})
	tr.Register(context.Background(), Job{JobID: "j2", VideoID: "v2"})

	eventually(t, "polling", func() bool { return fetcher.count("j1") > 1 && fetcher.count("j2") > 1 })
	tr.Close()

	if tr.Len() != 0 || tr.Polling("j1") || tr.Polling("j2") {
		t.Fatalf("registry not cleared: len=%d", tr.Len())
	}
	c1, c2 := fetcher.count("j1"), fetcher.count("j2")
	time.Sleep(30 * time.Millisecond)
	if fetcher.count("j1") != c1 || fetcher.count("j2") != c2 {
		t.Fatalf("status requests continued after UnregisterAll")
	}
}

func TestTracker_CancelledContextDropsJob(t *testing.T) {
	fetcher := newScriptedFetcher()
	tr := NewTracker(fetcher, Options{Policy: fastPolicy()})
	t.Cleanup(tr.Close)

	ctx, cancel := context.WithCancel(context.Background())
	if !tr.Register(ctx, Job{JobID: "j1", VideoID: "v1"}) {
		t.Fatalf("Register returned false")
	}
	eventually(t, "first poll", func() bool { return fetcher.count("j1") > 0 })
	cancel()

	eventually(t, "job removal", func() bool { return !tr.Polling("j1") && tr.Len() == 0 })
	calls := fetcher.count("j1")
	time.Sleep(30 * time.Millisecond)
	if got := fetcher.count("j1"); got != calls {
		t.Fatalf("status polled after cancel: %d -> %d", calls, got)
	}
	if !tr.Register(context.Background(), Job{JobID: "j2", VideoID: "v1"}) {
		t.Fatalf("video still blocked by the cancelled job")
	}
}

func TestTracker_TracksProgress(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.script("j1", status(fireshare.JobProcessing, 40))
	tr := NewTracker(fetcher, Options{Policy: fastPolicy()})
	t.Cleanup(tr.Close)
	tr.Register(context.Background(), Job{JobID: "j1", VideoID: "v1"})

	eventually(t, "progress update", func() bool {
		jobs := tr.Jobs()
		return len(jobs) == 1 && jobs[0].Progress == 40 && jobs[0].Status == fireshare.JobProcessing
	})
	if !tr.Polling("j1") {
		t.Fatalf("Polling(j1) = false while processing")
	}
}

func TestBackoff(t *testing.T) {
	base := 2 * time.Second
	limit := 30 * time.Second
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 2 * time.Second},
		{-3, 2 * time.Second},
		{1, 4 * time.Second},
		{3, 16 * time.Second},
		{4, 30 * time.Second},
		{50, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.failures, base, limit); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestPolicyNormalized(t *testing.T) {
	p := Policy{}.normalized()
	if p.Interval != 3*time.Second || p.MaxInterval != 3*time.Second {
		t.Fatalf("normalized zero policy = %#v", p)
	}
	if got := DefaultPolicy(); got.MaxDuration != 30*time.Minute || got.GraceDelay != time.Second {
		t.Fatalf("DefaultPolicy = %#v", got)
	}
}
