package app

import (
	"context"
	"log"
	"time"

	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/jobs"
	"github.com/five82/ember/internal/state"
)

const (
	defaultPollInterval = 10 * time.Second
	maxBackoff          = 30 * time.Second
)

// Poller keeps the store's video list fresh. It refetches on a fixed cadence,
// whenever Invalidate is called and whenever the query changes.
type Poller struct {
	store    *state.Store
	source   fireshare.VideoSource
	interval time.Duration
	wake     chan struct{}

	// onUnauthorized runs when the personal feed is rejected with 401.
	onUnauthorized func()
}

// NewPoller returns a poller for source. It does nothing until Start.
func NewPoller(store *state.Store, source fireshare.VideoSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		store:    store,
		source:   source,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the background goroutine. It returns immediately.
func (p *Poller) Start(ctx context.Context) {
	go p.loop(ctx)
}

// Invalidate asks for a refetch as soon as possible. Calls made while a
// refetch is already pending are folded into it.
func (p *Poller) Invalidate() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// SetQuery switches between the personal and public list or changes the sort
// order, then triggers a refetch.
func (p *Poller) SetQuery(public bool, sort string) {
	if p.store.SetQuery(state.Query{Public: public, Sort: sort}) {
		p.Invalidate()
	}
}

func (p *Poller) loop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-p.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		p.Refresh(ctx)

		// Back off while the server is unreachable so we do not hammer it.
		delay := p.interval
		if failures := p.store.Snapshot().ConsecutiveFailures; failures > 0 {
			delay = calculateBackoff(failures, p.interval)
		}
		timer.Reset(delay)
	}
}

// Refresh fetches the current query once and records the result.
func (p *Poller) Refresh(ctx context.Context) {
	q := p.store.Query()
	p.store.SetFetching(true)
	defer p.store.SetFetching(false)

	var (
		videos []fireshare.Video
		err    error
	)
	if q.Public {
		videos, err = p.source.FetchPublicVideos(ctx, q.Sort)
	} else {
		videos, err = p.source.FetchVideos(ctx, q.Sort)
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("video poll failed: %v", err)
		if fireshare.IsUnauthorized(err) && !q.Public {
			p.expireSession()
			return
		}
	}
	p.store.Update(q, videos, err)
}

// expireSession drops the login and falls back to the public feed.
func (p *Poller) expireSession() {
	log.Printf("session rejected by server, switching to public videos")
	if p.onUnauthorized != nil {
		p.onUnauthorized()
	}
	if p.store.ExpireSession() {
		p.Invalidate()
	}
}

// calculateBackoff returns the poll delay after the given number of
// consecutive failures.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	return jobs.Backoff(failures, base, maxBackoff)
}
