package fireshare_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/fstest"
)

func newClient(t *testing.T, srv *fstest.Server) *fireshare.Client {
	t.Helper()
	c, err := fireshare.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_CoalescesConcurrentIdenticalGets(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.SetVideos(fireshare.Video{VideoID: "v1", Available: true, Info: fireshare.VideoInfo{Title: "Clip"}})
	c := newClient(t, srv)

	release := srv.Hold(http.MethodGet, "/api/videos/public")
	t.Cleanup(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	var wg sync.WaitGroup
	results := make([][]fireshare.Video, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.FetchPublicVideos(ctx, "updated_at desc")
	}()
	waitFor(t, "first request to reach the server", func() bool {
		return srv.Hits(http.MethodGet, "/api/videos/public") == 1
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = c.FetchPublicVideos(ctx, "updated_at desc")
	}()
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d returned error: %v", i, err)
		}
	}
	if got := srv.Hits(http.MethodGet, "/api/videos/public"); got != 1 {
		t.Fatalf("network calls = %d, want 1", got)
	}
	if !reflect.DeepEqual(results[0], results[1]) || len(results[0]) != 1 {
		t.Fatalf("results differ or empty: %#v vs %#v", results[0], results[1])
	}

	// The key is released after settling, so the next call goes to the network.
	if _, err := c.FetchPublicVideos(ctx, "updated_at desc"); err != nil {
		t.Fatalf("FetchPublicVideos returned error: %v", err)
	}
	if got := srv.Hits(http.MethodGet, "/api/videos/public"); got != 2 {
		t.Fatalf("network calls after settle = %d, want 2", got)
	}
}

func TestClient_DifferentParamsAreNotCoalesced(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	c := newClient(t, srv)

	release := srv.Hold(http.MethodGet, "/api/videos/public")
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, sort := range []string{"updated_at desc", "updated_at asc"} {
		wg.Add(1)
		go func(sort string) {
			defer wg.Done()
			_, _ = c.FetchPublicVideos(ctx, sort)
		}(sort)
	}
	waitFor(t, "both requests to reach the server", func() bool {
		return srv.Hits(http.MethodGet, "/api/videos/public") == 2
	})
	release()
	wg.Wait()
}

func TestClient_RetriesQueriesOnceOnServerError(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.SetGames(fireshare.Game{ID: 1, Name: "Halo"})
	c := newClient(t, srv)

	srv.FailNext(http.MethodGet, "/api/games", http.StatusBadGateway)
	games, err := c.FetchGames(context.Background())
	if err != nil {
		t.Fatalf("FetchGames returned error: %v", err)
	}
	if len(games) != 1 || games[0].Name != "Halo" {
		t.Fatalf("games = %#v, want Halo", games)
	}
	if got := srv.Hits(http.MethodGet, "/api/games"); got != 2 {
		t.Fatalf("hits = %d, want 2 (one retry)", got)
	}

	srv.FailNext(http.MethodGet, "/api/games", http.StatusInternalServerError, http.StatusInternalServerError)
	_, err = c.FetchGames(context.Background())
	if err == nil || !strings.Contains(err.Error(), "returned status 500") {
		t.Fatalf("FetchGames error = %v, want status 500 error", err)
	}
}

func TestClient_DoesNotRetryValidationErrorsOrMutations(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.SetVideos(fireshare.Video{VideoID: "v1"})
	c := newClient(t, srv)

	_, err := c.FetchVideoDetails(context.Background(), "missing")
	if !fireshare.IsValidation(err) {
		t.Fatalf("FetchVideoDetails error = %v, want validation error", err)
	}
	if got := fireshare.UserMessage(err); got != "Video not found" {
		t.Fatalf("UserMessage = %q, want server text verbatim", got)
	}
	if got := srv.Hits(http.MethodGet, "/api/video/details/missing"); got != 1 {
		t.Fatalf("hits = %d, want 1", got)
	}

	srv.FailNext(http.MethodPut, "/api/video/details/v1", http.StatusServiceUnavailable)
	title := "New"
	if err := c.UpdateVideoDetails(context.Background(), "v1", fireshare.DetailsUpdate{Title: &title}); err == nil {
		t.Fatalf("UpdateVideoDetails returned nil error, want 503")
	}
	if got := srv.Hits(http.MethodPut, "/api/video/details/v1"); got != 1 {
		t.Fatalf("mutation hits = %d, want 1", got)
	}
}

func TestClient_ClearSessionDropsCookie(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.RequireLogin("admin", "secret")
	c := newClient(t, srv)
	ctx := context.Background()

	if _, err := c.Login(ctx, "admin", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, err := c.FetchVideos(ctx, ""); err != nil {
		t.Fatalf("FetchVideos after login returned error: %v", err)
	}

	c.ClearSession()

	if _, err := c.FetchVideos(ctx, ""); !fireshare.IsUnauthorized(err) {
		t.Fatalf("FetchVideos after ClearSession error = %v, want 401", err)
	}
	if current, err := c.LoggedIn(ctx); err != nil || current != nil {
		t.Fatalf("LoggedIn after ClearSession = %v, %v; want nil", current, err)
	}
}

func TestClient_VideoMutations(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.RequireLogin("admin", "secret")
	srv.SetVideos(
		fireshare.Video{VideoID: "v1", Info: fireshare.VideoInfo{Title: "Old"}, TagNames: []string{"clutch"}},
		fireshare.Video{VideoID: "v2", Info: fireshare.VideoInfo{Title: "Other"}},
	)
	c := newClient(t, srv)
	ctx := context.Background()

	title := "New"
	if err := c.UpdateVideoDetails(ctx, "v1", fireshare.DetailsUpdate{Title: &title}); !fireshare.IsUnauthorized(err) {
		t.Fatalf("UpdateVideoDetails without session error = %v, want 401", err)
	}
	if _, err := c.Login(ctx, "admin", "secret"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	private := true
	if err := c.UpdateVideoDetails(ctx, "v1", fireshare.DetailsUpdate{Title: &title, Private: &private}); err != nil {
		t.Fatalf("UpdateVideoDetails returned error: %v", err)
	}
	if err := c.SetVideoGame(ctx, "v1", "Halo"); err != nil {
		t.Fatalf("SetVideoGame returned error: %v", err)
	}
	if err := c.AddVideoTags(ctx, "v1", []string{"funny", "clutch"}); err != nil {
		t.Fatalf("AddVideoTags returned error: %v", err)
	}

	v, err := c.FetchVideoDetails(ctx, "v1")
	if err != nil {
		t.Fatalf("FetchVideoDetails returned error: %v", err)
	}
	if v.Title() != "New" || !v.IsPrivate() || v.Game() != "Halo" {
		t.Fatalf("video after update = %#v", v)
	}
	if got, want := v.Tags(), []string{"clutch", "funny"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}

	if err := c.UpdateVideoDetails(ctx, " ", fireshare.DetailsUpdate{Title: &title}); err == nil {
		t.Fatalf("UpdateVideoDetails accepted an empty id")
	}
	if err := c.SetVideoGame(ctx, "missing", "Halo"); !fireshare.IsValidation(err) {
		t.Fatalf("SetVideoGame on missing video error = %v, want validation", err)
	}

	if err := c.DeleteVideo(ctx, "v2"); err != nil {
		t.Fatalf("DeleteVideo returned error: %v", err)
	}
	videos, err := c.FetchVideos(ctx, "")
	if err != nil || len(videos) != 1 || videos[0].VideoID != "v1" {
		t.Fatalf("videos after delete = %#v, %v; want only v1", videos, err)
	}
	if err := c.DeleteVideo(ctx, "v2"); !fireshare.IsValidation(err) {
		t.Fatalf("second DeleteVideo error = %v, want validation", err)
	}
}

func TestClient_LoginSessionCookie(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.RequireLogin("admin", "secret")
	srv.SetVideos(fireshare.Video{VideoID: "v1"})
	c := newClient(t, srv)
	ctx := context.Background()

	_, err := c.FetchVideos(ctx, "")
	if !fireshare.IsUnauthorized(err) {
		t.Fatalf("FetchVideos before login error = %v, want 401", err)
	}
	if got := fireshare.UserMessage(err); !strings.Contains(got, "Session expired") {
		t.Fatalf("UserMessage = %q, want session expired", got)
	}

	if _, err := c.Login(ctx, "admin", "wrong"); !fireshare.IsUnauthorized(err) {
		t.Fatalf("Login with wrong password error = %v, want 401", err)
	}
	session, err := c.Login(ctx, "admin", "secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !session.IsAdmin || session.User.Username != "admin" {
		t.Fatalf("session = %#v, want admin", session)
	}

	videos, err := c.FetchVideos(ctx, "")
	if err != nil {
		t.Fatalf("FetchVideos after login returned error: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("videos = %#v, want 1", videos)
	}

	current, err := c.LoggedIn(ctx)
	if err != nil || current == nil {
		t.Fatalf("LoggedIn = %v, %v; want session", current, err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	current, err = c.LoggedIn(ctx)
	if err != nil || current != nil {
		t.Fatalf("LoggedIn after logout = %v, %v; want nil", current, err)
	}
}

func TestClient_UploadReturnsJob(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.QueueUpload("j1", fireshare.Video{VideoID: "v1"})
	c := newClient(t, srv)

	path := filepath.Join(t.TempDir(), "Clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	res, err := c.Upload(context.Background(), fireshare.UploadRequest{
		FilePath: path,
		Game:     "Halo",
		Tags:     []string{"clutch", " ", "win"},
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if !res.Processing() || res.JobID != "j1" || res.VideoID != "v1" {
		t.Fatalf("UploadResult = %#v, want job j1 for v1", res)
	}
	form := srv.LastUploadForm()
	if got := form["game"]; len(got) != 1 || got[0] != "Halo" {
		t.Fatalf("game field = %v, want Halo", got)
	}
	if got := form["tags[]"]; !reflect.DeepEqual(got, []string{"clutch", "win"}) {
		t.Fatalf("tags field = %v, want [clutch win]", got)
	}

	res, err = c.Upload(context.Background(), fireshare.UploadRequest{FilePath: path, Game: "Halo"})
	if err != nil {
		t.Fatalf("second Upload returned error: %v", err)
	}
	if res.Processing() {
		t.Fatalf("second upload = %#v, want synchronous result", res)
	}
}

func TestClient_UploadValidation(t *testing.T) {
	c, err := fireshare.NewClient("127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if _, err := c.Upload(context.Background(), fireshare.UploadRequest{}); err == nil {
		t.Fatalf("Upload without file returned nil error")
	}
	if _, err := c.Upload(context.Background(), fireshare.UploadRequest{FilePath: "x.mp4"}); err == nil {
		t.Fatalf("Upload without game returned nil error")
	}
	if _, err := c.FetchProcessingStatus(context.Background(), " "); err == nil {
		t.Fatalf("FetchProcessingStatus without id returned nil error")
	}
}

func TestClient_ProcessingStatusIsNotCoalescedOrRetried(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.ScriptJob("j1", fireshare.Video{VideoID: "v1"},
		fireshare.ProcessingStatus{Status: fireshare.JobProcessing, Progress: 40},
		fireshare.ProcessingStatus{Status: fireshare.JobCompleted, Progress: 100},
	)
	c := newClient(t, srv)
	ctx := context.Background()

	status, err := c.FetchProcessingStatus(ctx, "j1")
	if err != nil {
		t.Fatalf("FetchProcessingStatus returned error: %v", err)
	}
	if status.Status != fireshare.JobProcessing || status.Progress != 40 || status.VideoID != "v1" {
		t.Fatalf("status = %#v, want processing 40 for v1", status)
	}

	srv.FailNext(http.MethodGet, "/api/upload/status/j1", http.StatusInternalServerError)
	if _, err := c.FetchProcessingStatus(ctx, "j1"); err == nil {
		t.Fatalf("FetchProcessingStatus returned nil error, want 500")
	}
	if got := srv.Hits(http.MethodGet, "/api/upload/status/j1"); got != 2 {
		t.Fatalf("hits = %d, want 2", got)
	}

	status, err = c.FetchProcessingStatus(ctx, "j1")
	if err != nil || !status.Status.Terminal() {
		t.Fatalf("status = %#v, %v; want completed", status, err)
	}
}

func TestClient_CancelledCallerDoesNotFailSharedRequest(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.SetVideos(fireshare.Video{VideoID: "v1", Available: true})
	c := newClient(t, srv)

	release := srv.Hold(http.MethodGet, "/api/videos/public")
	t.Cleanup(release)

	early, cancelEarly := context.WithCancel(context.Background())
	earlyErr := make(chan error, 1)
	go func() {
		_, err := c.FetchPublicVideos(early, "")
		earlyErr <- err
	}()
	waitFor(t, "first request", func() bool {
		return srv.Hits(http.MethodGet, "/api/videos/public") == 1
	})

	lateDone := make(chan []fireshare.Video, 1)
	go func() {
		videos, _ := c.FetchPublicVideos(context.Background(), "")
		lateDone <- videos
	}()
	time.Sleep(50 * time.Millisecond)
	cancelEarly()
	if err := <-earlyErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("early caller error = %v, want context.Canceled", err)
	}
	release()
	select {
	case videos := <-lateDone:
		if len(videos) != 1 {
			t.Fatalf("late caller videos = %#v, want 1", videos)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("late caller never returned")
	}
}

func TestClient_ConfigGamesTagsSetup(t *testing.T) {
	srv := fstest.New()
	t.Cleanup(srv.Close)
	srv.SetConfig(fireshare.PublicConfig{ShareableLinkDomain: "https://clips.example.com"})
	srv.SetTags(fireshare.Tag{ID: 1, Name: "clutch"}, fireshare.Tag{ID: 2, Name: "funny"})
	srv.SetGames(fireshare.Game{ID: 1, Name: "Halo"}, fireshare.Game{ID: 2, Name: "Hades"})
	srv.SetSetupStatus(fireshare.SetupStatus{NeedsSetup: true})
	c := newClient(t, srv)
	ctx := context.Background()

	cfg, err := c.FetchPublicConfig(ctx)
	if err != nil {
		t.Fatalf("FetchPublicConfig returned error: %v", err)
	}
	if got := cfg.WatchURL(c.BaseURL(), "v1"); got != "https://clips.example.com/w/v1" {
		t.Fatalf("WatchURL = %q", got)
	}
	all, err := c.FetchTags(ctx)
	if err != nil || len(all) != 2 || all[0].Name != "clutch" {
		t.Fatalf("FetchTags = %#v, %v; want 2 tags", all, err)
	}
	tags, err := c.SearchTags(ctx, "FUN")
	if err != nil || len(tags) != 1 || tags[0].Name != "funny" {
		t.Fatalf("SearchTags = %#v, %v; want funny", tags, err)
	}
	games, err := c.SearchGames(ctx, "ha")
	if err != nil || len(games) != 2 {
		t.Fatalf("SearchGames = %#v, %v; want 2 games", games, err)
	}
	setup, err := c.FetchSetupStatus(ctx)
	if err != nil || !setup.NeedsSetup {
		t.Fatalf("FetchSetupStatus = %#v, %v; want needsSetup", setup, err)
	}
}
