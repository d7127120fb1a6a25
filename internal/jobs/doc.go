// Package jobs tracks uploads that the server is still processing.
//
// An upload that answers with a job id is registered with a Tracker, which
// polls /api/upload/status/{jobId} on its own goroutine until the server
// reports a terminal status. Polls for one job never overlap: the next poll is
// scheduled only after the previous response has been handled.
//
// Status transitions follow the server:
//
//	queued -> processing -> completed | failed
//
// plus a client-side timed_out once Policy.MaxDuration has elapsed. Request
// errors are logged and retried with exponential backoff capped at
// Policy.MaxInterval.
//
// A completed job stays in Jobs() for Policy.GraceDelay after OnComplete
// fires, giving the video list time to refetch. Failed and timed-out jobs are
// removed immediately and handed to OnFailed so the UI can show a notice.
package jobs
