// Package app is the composition root for ember.
//
// # Overview
//
// Run wires configuration, preferences, the response cache, the Fireshare
// client, the video poller, the processing-job tracker and the UI, then
// blocks in the TUI until the user quits or the context is cancelled.
//
// # Startup
//
//  1. Load ~/.config/ember/config.toml (plus .env and EMBER_* overrides)
//  2. Redirect the standard logger to <data_dir>/ember.log
//  3. Open the prefs file and the SQLite response cache
//  4. Check /api/setup/status and log in when credentials are configured
//  5. Load the public config, game list and tag list through the cache
//  6. Start the poller and hand everything to ui.Run
//
// # Data Flow
//
//	┌──────────────┐  FetchVideos / FetchPublicVideos  ┌──────────────┐
//	│   Poller     │ ────────────────────────────────> │  Fireshare   │
//	│ (goroutine)  │ <──────────────────────────────── │    server    │
//	└──────┬───────┘                                   └──────▲───────┘
//	       │ store.Update()                                   │
//	       ▼                                                  │ status polls
//	┌──────────────┐   Snapshot() every tick    ┌─────────────┴┐
//	│ state.Store  │ ─────────────────────────> │ jobs.Tracker │
//	└──────────────┘                            └──────────────┘
//	       │                                          │
//	       └──────────────> ui.Model <────────────────┘
//	                       (Jobs() every tick)
//
// When the tracker sees a job complete it marks the current feed's route hint
// and calls Poller.Invalidate, so the ready card replaces the placeholder on
// the next fetch without a skeleton in between. Failed and timed-out jobs
// become notices through state.Store.Notify.
//
// # Polling Behavior
//
// The poller fetches once at start, then every poll_interval (default 10s),
// and immediately whenever the UI changes the sort or feed or asks for a
// reload. After consecutive failures the delay doubles up to 30 seconds.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid config or prefs file
//   - Server unreachable during the 5 second startup check
//   - Server still needs first-run setup
//   - Login rejected
//
// Recoverable errors (logged, polling continues):
//   - Video list and job status request failures
//   - Public config, game or tag list failures (the UI falls back to defaults)
//   - Cache database failures (the cache is disabled)
package app
