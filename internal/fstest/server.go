// Package fstest runs an in-memory Fireshare server for tests.
package fstest

import (
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/five82/ember/internal/fireshare"
)

const sessionCookie = "session"

// Server is a scripted Fireshare API backed by echo.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	videos   []fireshare.Video
	games    []fireshare.Game
	tags     []fireshare.Tag
	config   fireshare.PublicConfig
	setup    fireshare.SetupStatus
	jobs     map[string]*scriptedJob
	uploads  []pendingUpload
	hits     map[string]int
	failures map[string][]int
	holds    map[string]chan struct{}
	user     string
	password string
	lastForm map[string][]string
}

type scriptedJob struct {
	video    fireshare.Video
	statuses []fireshare.ProcessingStatus
	next     int
}

type pendingUpload struct {
	jobID string
	video fireshare.Video
}

// New starts a server. Callers must Close it.
func New() *Server {
	s := &Server{
		jobs:     map[string]*scriptedJob{},
		hits:     map[string]int{},
		failures: map[string][]int{},
		holds:    map[string]chan struct{}{},
		setup:    fireshare.SetupStatus{SetupCompleted: true, UserCount: 1},
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.count, s.fail, s.hold)

	e.POST("/api/login", s.login)
	e.POST("/api/logout", s.logout)
	e.GET("/api/loggedin", s.loggedIn)
	e.GET("/api/videos", s.listVideos, s.requireSession)
	e.GET("/api/videos/public", s.listPublicVideos)
	e.GET("/api/video/details/:id", s.videoDetails)
	e.PUT("/api/video/details/:id", s.updateDetails, s.requireSession)
	e.DELETE("/api/video/delete/:id", s.deleteVideo, s.requireSession)
	e.PUT("/api/video/:id/game", s.setGame, s.requireSession)
	e.POST("/api/video/:id/tags", s.addTags, s.requireSession)
	e.POST("/api/upload", s.upload, s.requireSession)
	e.POST("/api/upload/public", s.upload)
	e.GET("/api/upload/status/:job", s.jobStatus)
	e.GET("/api/games", s.listGames)
	e.GET("/api/games/search", s.listGames)
	e.GET("/api/tags", s.listTags)
	e.GET("/api/tags/search", s.listTags)
	e.GET("/api/config", s.publicConfig)
	e.GET("/api/setup/status", s.setupStatus)

	s.Server = httptest.NewServer(e)
	return s
}

// RequireLogin makes protected endpoints demand a session from Login.
func (s *Server) RequireLogin(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.password = username, password
}

// SetVideos replaces the ready video list.
func (s *Server) SetVideos(videos ...fireshare.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos = append([]fireshare.Video(nil), videos...)
}

// SetGames replaces the game list.
func (s *Server) SetGames(games ...fireshare.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = append([]fireshare.Game(nil), games...)
}

// SetTags replaces the tag list.
func (s *Server) SetTags(tags ...fireshare.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append([]fireshare.Tag(nil), tags...)
}

// SetConfig replaces the public UI config.
func (s *Server) SetConfig(cfg fireshare.PublicConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// SetSetupStatus replaces the first-run setup status.
func (s *Server) SetSetupStatus(status fireshare.SetupStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setup = status
}

// ScriptJob registers a processing job. Each status request returns the next
// scripted status and repeats the last one. When a completed status is served
// the video joins the ready list.
func (s *Server) ScriptJob(jobID string, video fireshare.Video, statuses ...fireshare.ProcessingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = &scriptedJob{video: video, statuses: statuses}
}

// QueueUpload makes the next upload answer with jobID and the video's id.
func (s *Server) QueueUpload(jobID string, video fireshare.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, pendingUpload{jobID: jobID, video: video})
}

// Hits returns how many requests reached method and path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// FailNext makes the next requests to method and path fail with the given
// status codes, one code per request.
func (s *Server) FailNext(method, path string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], codes...)
}

// Hold blocks requests to method and path until the returned func is called.
func (s *Server) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[method+" "+path] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, method+" "+path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// LastUploadForm returns the form values of the most recent upload.
func (s *Server) LastUploadForm() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastForm
}

func (s *Server) count(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.hits[c.Request().Method+" "+c.Request().URL.Path]++
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) fail(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Method + " " + c.Request().URL.Path
		s.mu.Lock()
		codes := s.failures[key]
		var code int
		if len(codes) > 0 {
			code = codes[0]
			s.failures[key] = codes[1:]
		}
		s.mu.Unlock()
		if code != 0 {
			return c.JSON(code, map[string]string{"error": http.StatusText(code)})
		}
		return next(c)
	}
}

func (s *Server) hold(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		ch := s.holds[c.Request().Method+" "+c.Request().URL.Path]
		s.mu.Unlock()
		if ch != nil {
			select {
			case <-ch:
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
		return next(c)
	}
}

func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		required := s.user != ""
		s.mu.Unlock()
		if !required {
			return next(c)
		}
		if cookie, err := c.Cookie(sessionCookie); err != nil || cookie.Value != "ok" {
			return c.String(http.StatusUnauthorized, "Unauthorized")
		}
		return next(c)
	}
}
