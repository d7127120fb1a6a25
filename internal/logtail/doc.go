// Package logtail reads the tail of ember's log file for the logs view.
//
// # Reading Log Files
//
// Read uses a ring buffer of size maxLines, so the last N lines of a large
// file are returned in one pass with O(maxLines) memory:
//
//	lines, err := logtail.Read(cfg.LogPath(), 400)
//	if err != nil {
//		log.Printf("failed to read log: %v", err)
//	}
//
// Read returns nil, nil for a log file that does not exist yet.
//
// # Parsing
//
// ember logs through the standard library logger, so lines look like:
//
//	2026/10/19 14:32:15 processing status j1 failed (retry in 6s): connection refused
//
// Parse splits off the timestamp and guesses a level from the message text
// (failures and panics are errors, timeouts and retries are warnings). The UI
// picks colours from the level.
package logtail
