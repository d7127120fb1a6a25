package fstest

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/five82/ember/internal/fireshare"
)

func (s *Server) login(c echo.Context) error {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	s.mu.Lock()
	ok := s.user == "" || (creds.Username == s.user && creds.Password == s.password)
	s.mu.Unlock()
	if !ok {
		return c.String(http.StatusUnauthorized, "Invalid credentials")
	}
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: "ok", Path: "/"})
	return c.JSON(http.StatusOK, fireshare.Session{
		User:    fireshare.User{ID: 1, Username: creds.Username, Role: "admin", Status: "active"},
		IsAdmin: true,
	})
}

func (s *Server) logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	return c.NoContent(http.StatusOK)
}

func (s *Server) loggedIn(c echo.Context) error {
	if cookie, err := c.Cookie(sessionCookie); err != nil || cookie.Value != "ok" {
		return c.String(http.StatusOK, "false")
	}
	return c.JSON(http.StatusOK, fireshare.Session{User: fireshare.User{ID: 1}, IsAdmin: true})
}

func (s *Server) listVideos(c echo.Context) error {
	s.mu.Lock()
	videos := append([]fireshare.Video{}, s.videos...)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, fireshare.VideoListResponse{Videos: videos})
}

func (s *Server) listPublicVideos(c echo.Context) error {
	s.mu.Lock()
	videos := make([]fireshare.Video, 0, len(s.videos))
	for _, v := range s.videos {
		if v.Info.Private || !v.Available {
			continue
		}
		videos = append(videos, v)
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, fireshare.VideoListResponse{Videos: videos})
}

func (s *Server) findVideo(id string) (int, bool) {
	for i, v := range s.videos {
		if v.VideoID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Server) videoDetails(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findVideo(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Video not found"})
	}
	return c.JSON(http.StatusOK, s.videos[i])
}

func (s *Server) updateDetails(c echo.Context) error {
	var update fireshare.DetailsUpdate
	if err := c.Bind(&update); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findVideo(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Video not found"})
	}
	if update.Title != nil {
		s.videos[i].Info.Title = *update.Title
	}
	if update.Description != nil {
		s.videos[i].Info.Description = *update.Description
	}
	if update.Private != nil {
		s.videos[i].Info.Private = *update.Private
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) deleteVideo(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findVideo(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Video not found"})
	}
	s.videos = append(s.videos[:i], s.videos[i+1:]...)
	return c.NoContent(http.StatusOK)
}

func (s *Server) setGame(c echo.Context) error {
	var body struct {
		Game string `json:"game"`
	}
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Game) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Game is required"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findVideo(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Video not found"})
	}
	s.videos[i].GameName = body.Game
	return c.NoContent(http.StatusOK)
}

func (s *Server) addTags(c echo.Context) error {
	var body struct {
		Tags []string `json:"tags"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findVideo(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Video not found"})
	}
	for _, tag := range body.Tags {
		if tag = strings.TrimSpace(tag); tag != "" && !slices.Contains(s.videos[i].TagNames, tag) {
			s.videos[i].TagNames = append(s.videos[i].TagNames, tag)
		}
	}
	return c.JSON(http.StatusCreated, map[string]any{"tags": s.videos[i].TagNames})
}

func (s *Server) upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader.Filename == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No file provided"})
	}
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid form"})
	}
	if strings.TrimSpace(c.FormValue("game")) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Game is required"})
	}
	tags := form.Value["tags[]"]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastForm = form.Value
	if len(s.uploads) == 0 {
		return c.JSON(http.StatusCreated, map[string]any{"message": "Video uploaded successfully", "tags": tags})
	}
	next := s.uploads[0]
	s.uploads = s.uploads[1:]
	if _, ok := s.jobs[next.jobID]; !ok {
		s.jobs[next.jobID] = &scriptedJob{
			video:    next.video,
			statuses: []fireshare.ProcessingStatus{{Status: fireshare.JobCompleted, Progress: 100}},
		}
	}
	return c.JSON(http.StatusCreated, fireshare.UploadResult{
		Message: "Video uploaded, processing started",
		JobID:   next.jobID,
		VideoID: next.video.VideoID,
		Tags:    tags,
	})
}

func (s *Server) jobStatus(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[c.Param("job")]
	if !ok || len(job.statuses) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Job not found"})
	}
	idx := job.next
	if idx >= len(job.statuses) {
		idx = len(job.statuses) - 1
	} else {
		job.next++
	}
	status := job.statuses[idx]
	status.VideoID = job.video.VideoID
	if status.Status == fireshare.JobCompleted {
		if _, exists := s.findVideo(job.video.VideoID); !exists {
			s.videos = append([]fireshare.Video{job.video}, s.videos...)
		}
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) listGames(c echo.Context) error {
	q := strings.ToLower(c.QueryParam("q"))
	s.mu.Lock()
	defer s.mu.Unlock()
	games := make([]fireshare.Game, 0, len(s.games))
	for _, g := range s.games {
		if q == "" || strings.Contains(strings.ToLower(g.Name), q) {
			games = append(games, g)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"games": games})
}

func (s *Server) listTags(c echo.Context) error {
	q := strings.ToLower(c.QueryParam("q"))
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]fireshare.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		if q == "" || strings.Contains(strings.ToLower(t.Name), q) {
			tags = append(tags, t)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) publicConfig(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.config)
}

func (s *Server) setupStatus(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.setup)
}
