package state

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/five82/ember/internal/fireshare"
)

// Query identifies which video list the poller fetches.
type Query struct {
	Public bool
	Sort   string
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Query               Query
	Videos              []fireshare.Video
	HasVideos           bool // at least one successful fetch for Query
	Fetching            bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int  // Number of consecutive poll failures
	SessionExpired      bool // the server rejected the login session
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Loading reports whether nothing has been fetched yet for the current query.
func (s Snapshot) Loading() bool {
	return !s.HasVideos && s.LastError == nil
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	notices  []string
}

// SetQuery switches the list being tracked. Videos from the previous query
// are kept on screen until the next successful fetch replaces them.
func (s *Store) SetQuery(q Query) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Query == q {
		return false
	}
	s.snapshot.Query = q
	s.snapshot.HasVideos = false
	return true
}

// SessionExpired is the notice queued by ExpireSession.
const SessionExpired = "Session expired, showing public videos. Restart ember to log in again."

// ExpireSession records that the server no longer accepts the login session
// and switches to the public feed, keeping the sort. It reports whether this
// call changed anything.
func (s *Store) ExpireSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.SessionExpired {
		return false
	}
	s.snapshot.SessionExpired = true
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	if !s.snapshot.Query.Public {
		s.snapshot.Query.Public = true
		s.snapshot.HasVideos = false
	}
	s.notices = append(s.notices, SessionExpired)
	return true
}

// Query returns the query currently tracked.
func (s *Store) Query() Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Query
}

// SetFetching records whether a fetch is in flight.
func (s *Store) SetFetching(fetching bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Fetching = fetching
}

// Update replaces the stored videos for q. When err is non-nil the previous
// data is kept but the error is recorded for visibility. Results for a query
// that is no longer current are dropped.
func (s *Store) Update(q Query, videos []fireshare.Video, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q != s.snapshot.Query {
		return
	}
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Videos = cloneVideos(videos)
	s.snapshot.HasVideos = true
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// PatchVideo applies fn to the stored copy of a video, e.g. an edit the server
// has not confirmed yet. It returns the video as it was before the change.
func (s *Store) PatchVideo(id string, fn func(*fireshare.Video)) (fireshare.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fireshare.Video{}, false
	}
	before := s.snapshot.Videos[i]
	before.TagNames = before.Tags()
	fn(&s.snapshot.Videos[i])
	return before, true
}

// RemoveVideo drops a video from the list and returns it with its position so
// a failed delete can put it back.
func (s *Store) RemoveVideo(id string) (fireshare.Video, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fireshare.Video{}, -1, false
	}
	v := s.snapshot.Videos[i]
	s.snapshot.Videos = append(s.snapshot.Videos[:i:i], s.snapshot.Videos[i+1:]...)
	return v, i, true
}

// RestoreVideo undoes RemoveVideo. A video that is back in the list is
// replaced in place; otherwise it is inserted at index, clamped to the list.
func (s *Store) RestoreVideo(v fireshare.Video, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(v.VideoID); i >= 0 {
		s.snapshot.Videos[i] = v
		return
	}
	index = max(0, min(index, len(s.snapshot.Videos)))
	s.snapshot.Videos = slices.Insert(s.snapshot.Videos, index, v)
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.snapshot.Videos, func(v fireshare.Video) bool { return v.VideoID == id })
}

// Notify queues a message for the UI, e.g. a processing failure reported by a
// background goroutine.
func (s *Store) Notify(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, msg)
}

// TakeNotices returns queued messages in arrival order and clears the queue.
func (s *Store) TakeNotices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Videos = cloneVideos(s.snapshot.Videos)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneVideos(items []fireshare.Video) []fireshare.Video {
	if len(items) == 0 {
		return nil
	}
	dup := make([]fireshare.Video, len(items))
	copy(dup, items)
	for i := range dup {
		dup[i].TagNames = items[i].Tags()
	}
	return dup
}
