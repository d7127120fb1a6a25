package fireshare

import (
	"path"
	"strings"
	"time"
)

// JobStatus is the processing state reported by /api/upload/status.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further status changes are expected.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// VideoListResponse mirrors /api/videos and /api/videos/public.
type VideoListResponse struct {
	Videos []Video `json:"videos"`
}

// Video is a ready (or at least scanned) video as returned by the server.
type Video struct {
	VideoID   string    `json:"video_id"`
	Extension string    `json:"extension"`
	Path      string    `json:"path"`
	Available bool      `json:"available"`
	Info      VideoInfo `json:"info"`
	Views     int       `json:"view_count"`
	GameName  string    `json:"game,omitempty"`
	TagNames  []string  `json:"tags,omitempty"`
}

// VideoInfo holds the editable metadata of a video.
type VideoInfo struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Private     bool    `json:"private"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Duration    float64 `json:"duration"`
	Framerate   *int    `json:"framerate"`
}

// Title returns the display title, falling back to the file name.
func (v Video) Title() string {
	if title := strings.TrimSpace(v.Info.Title); title != "" {
		return title
	}
	base := path.Base(v.Path)
	if base == "." || base == "/" {
		return v.VideoID
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// DurationSeconds returns the rounded duration in seconds.
func (v Video) DurationSeconds() int {
	if v.Info.Duration <= 0 {
		return 0
	}
	return int(v.Info.Duration + 0.5)
}

// Duration returns the video length as a time.Duration.
func (v Video) Duration() time.Duration {
	return time.Duration(v.DurationSeconds()) * time.Second
}

// IsPrivate reports whether the video is hidden from the public feed.
func (v Video) IsPrivate() bool { return v.Info.Private }

// Game returns the game the video is categorised under, or "".
func (v Video) Game() string { return strings.TrimSpace(v.GameName) }

// Tags returns a copy of the video's tag names.
func (v Video) Tags() []string {
	if len(v.TagNames) == 0 {
		return nil
	}
	out := make([]string, len(v.TagNames))
	copy(out, v.TagNames)
	return out
}

// DetailsUpdate is a partial update for PUT /api/video/details/{id}.
// Nil fields are left untouched by the server.
type DetailsUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Private     *bool   `json:"private,omitempty"`
}

// UploadRequest describes a file upload.
type UploadRequest struct {
	FilePath string
	Game     string
	Tags     []string
	Public   bool
}

// UploadResult mirrors the upload response. A non-empty JobID means the server
// is still processing the video asynchronously.
type UploadResult struct {
	Message string   `json:"message"`
	JobID   string   `json:"job_id"`
	VideoID string   `json:"video_id"`
	Tags    []string `json:"tags"`
}

// Processing reports whether the upload handed back an asynchronous job.
func (r UploadResult) Processing() bool {
	return strings.TrimSpace(r.JobID) != ""
}

// ProcessingStatus mirrors /api/upload/status/{jobId}.
type ProcessingStatus struct {
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	VideoID  string    `json:"video_id,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Game is a game category.
type Game struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	VideoCount int    `json:"video_count"`
}

// Tag is a free-form video tag.
type Tag struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	VideoCount int    `json:"video_count"`
}

// User is the account returned by login and /api/loggedin.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Status      string `json:"status"`
}

// Session is the login state of the client.
type Session struct {
	User    User `json:"user"`
	IsAdmin bool `json:"isAdmin"`
}

// PublicConfig mirrors the ui_config block exposed by /api/config.
type PublicConfig struct {
	ShareableLinkDomain string `json:"shareable_link_domain"`
	ShowAdminUpload     bool   `json:"show_admin_upload"`
	ShowPublicUpload    bool   `json:"show_public_upload"`
	AllowPublicUpload   bool   `json:"allow_public_upload"`
}

// WatchURL builds the public share link for a video.
func (c PublicConfig) WatchURL(base, videoID string) string {
	domain := strings.TrimRight(strings.TrimSpace(c.ShareableLinkDomain), "/")
	if domain == "" {
		domain = strings.TrimRight(base, "/")
	}
	return domain + "/w/" + videoID
}

// SetupStatus mirrors /api/setup/status.
type SetupStatus struct {
	NeedsSetup     bool `json:"needsSetup"`
	SetupCompleted bool `json:"setupCompleted"`
	UserCount      int  `json:"userCount"`
}
