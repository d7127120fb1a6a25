// Package state provides thread-safe state shared by the video poller and the
// UI.
//
// # Architecture
//
//	poller goroutine               UI (Bubble Tea)
//	----------------               ---------------
//	FetchVideos(sort)
//	store.Update(q, videos, err) -> store.Snapshot()
//	wait for tick or Invalidate     library.Build(...)
//
// # Update Semantics
//
//	// Success: replace the list
//	store.Update(q, videos, nil)
//
//	// Error: keep the old list, record the error
//	store.Update(q, nil, err)
//
// Every update carries the Query it was fetched for. When the UI switches
// sort order or between the public and personal lists, SetQuery moves the
// store to the new query; late responses for the old one are dropped. The old
// videos stay visible until the first fetch for the new query lands, which is
// what lets the UI avoid flashing an empty list.
//
// # Offline Detection
//
// ConsecutiveFailures counts polls that failed in a row. IsOffline reports
// true from the second failure, so a single blip does not change the header.
//
// Snapshots are deep copies. The zero Store is ready to use.
package state
