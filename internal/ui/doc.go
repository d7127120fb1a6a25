// Package ui is ember's Bubble Tea terminal interface.
//
// # Views
//
//   - Videos: the merged library. Processing uploads come first as
//     placeholder cards with a caption and a progress bar (a spinner until
//     the server reports progress), followed by ready videos in server order.
//     A folder drawer on the left filters by top-level folder or game.
//   - Logs: the tail of ember's own log file, coloured by level.
//
// # Data Flow
//
// The model never calls the server to read. On every tick it copies
// state.Store's snapshot and the job registry's jobs, then rebuilds the
// rendered list with library.Build. Writes go the other way: sort and feed
// changes call Feed.SetQuery, uploads go through Uploader and register a
// processing job.
//
// Edits and deletes are optimistic. The change is made to the store first so
// the list redraws at once, then Editor sends it. When the server refuses,
// the store is put back and a notice names the video.
//
// # Loading and Empty States
//
// The skeleton is drawn only while nothing has been fetched for the current
// feed, the loading gate has been up for its debounce delay, and the view has
// never shown videos in this process. Once a view has shown content its hint
// stays set, so switching sort or feed keeps the old list on screen instead
// of flashing a skeleton. The "No videos found." state is held back the
// same way, but only until the current feed has fetched successfully.
//
// # Preferences
//
// Theme, dark mode, card size, list style, sort, folder and drawer state are
// written to the prefs store as soon as they change.
//
// # Rendering Failures
//
// A panic while drawing the content pane is recovered and replaced by a
// fallback panel. Pressing r clears it and asks the poller to refetch.
package ui
