// Package hints remembers which views have shown content during this process,
// so returning to them can skip the loading skeleton and empty state.
//
// Flags are keyed route:<name>:hasVideos or component:<name>:hasShownVideos.
// They are set on the first non-empty render and never cleared while the
// process runs. A set flag hides the skeleton and empty state only until the
// current query has fresh data.
package hints

import (
	"sync"
	"time"
)

// RouteKey returns the flag key for a routed view.
func RouteKey(name string) string { return "route:" + name + ":hasVideos" }

// ComponentKey returns the flag key for a component inside a view.
func ComponentKey(name string) string { return "component:" + name + ":hasShownVideos" }

// Hints is a process-wide set of "has rendered content" flags. The zero value
// is ready to use.
type Hints struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// Observe records a render of count items under key. It returns whether the
// flag is set afterwards.
func (h *Hints) Observe(key string, count int) bool {
	if count <= 0 {
		return h.HasRenderedBefore(key)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.flags == nil {
		h.flags = map[string]bool{}
	}
	h.flags[key] = true
	return true
}

// Mark sets key without a render, e.g. when a job completes and the view is
// known to have content on its next visit.
func (h *Hints) Mark(key string) { h.Observe(key, 1) }

// HasRenderedBefore reports whether key has been set.
func (h *Hints) HasRenderedBefore(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.flags[key]
}

// ShowSkeleton reports whether a loading skeleton should be drawn.
func (h *Hints) ShowSkeleton(key string, loading bool) bool {
	return loading && !h.HasRenderedBefore(key)
}

// ShowEmpty reports whether the "no videos" state should be drawn. fresh is
// true once the current query has completed a successful fetch; an empty
// fresh result is always shown. Before that, a set flag hides the state so
// the previous render stays up.
func (h *Hints) ShowEmpty(key string, loading, fresh bool, count int) bool {
	if count > 0 || loading {
		return false
	}
	if fresh {
		return true
	}
	return !h.HasRenderedBefore(key)
}

// Keys returns the set keys.
func (h *Hints) Keys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.flags))
	for k, v := range h.flags {
		if v {
			out = append(out, k)
		}
	}
	return out
}

// Gate timings used by NewLoadingGate.
const (
	DefaultMinVisible = 800 * time.Millisecond
	DefaultDebounce   = 300 * time.Millisecond
)

// LoadingGate smooths a loading flag: the indicator only appears once loading
// has lasted the debounce delay, and once shown it stays for at least the
// minimum visible duration.
type LoadingGate struct {
	MinVisible time.Duration
	Debounce   time.Duration
	Now        func() time.Time

	loading      bool
	loadingSince time.Time
	visible      bool
	shownAt      time.Time
}

// NewLoadingGate returns a gate with the default timings.
func NewLoadingGate() *LoadingGate {
	return &LoadingGate{MinVisible: DefaultMinVisible, Debounce: DefaultDebounce, Now: time.Now}
}

func (g *LoadingGate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// Set records the raw loading state.
func (g *LoadingGate) Set(loading bool) {
	if loading == g.loading {
		return
	}
	g.loading = loading
	if loading {
		g.loadingSince = g.now()
	}
}

// Visible reports whether the loading indicator should be drawn now.
func (g *LoadingGate) Visible() bool {
	now := g.now()
	if g.loading {
		if !g.visible && now.Sub(g.loadingSince) >= g.Debounce {
			g.visible = true
			g.shownAt = now
		}
		return g.visible
	}
	if g.visible && now.Sub(g.shownAt) >= g.MinVisible {
		g.visible = false
	}
	return g.visible
}
