package fireshare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// VideoSource fetches video listings. Implemented by *Client.
type VideoSource interface {
	FetchVideos(ctx context.Context, sort string) ([]Video, error)
	FetchPublicVideos(ctx context.Context, sort string) ([]Video, error)
}

// StatusFetcher fetches processing job status. Implemented by *Client.
type StatusFetcher interface {
	FetchProcessingStatus(ctx context.Context, jobID string) (ProcessingStatus, error)
}

// Ensure Client implements the consumer interfaces at compile time.
var (
	_ VideoSource   = (*Client)(nil)
	_ StatusFetcher = (*Client)(nil)
)

// Client talks to the Fireshare HTTP API using a session cookie.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	upload    *http.Client
	userAgent string
	retries   int
	inflight  singleflight.Group
	jar       *sessionJar
}

const (
	defaultServerURL = "127.0.0.1:8080"
	defaultUserAgent = "ember/0.1"
	requestTimeout   = 10 * time.Second
	queryRetries     = 1
)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport used for regular requests. The
// client's cookie jar is installed when the given client has none.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h == nil {
			return
		}
		if h.Jar == nil {
			h.Jar = c.http.Jar
		}
		c.http = h
	}
}

// WithQueryRetries sets how many times a failed GET is retried.
func WithQueryRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// NewClient builds a Client for the server at serverURL (host:port or URL).
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(serverURL)
	if err != nil {
		return nil, err
	}
	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout, Jar: jar},
		upload:    &http.Client{Jar: jar},
		userAgent: defaultUserAgent,
		retries:   queryRetries,
		jar:       jar,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.upload.Jar = c.http.Jar
	if c.http.Transport != nil {
		c.upload.Transport = c.http.Transport
	}
	return c, nil
}

// BaseURL returns the normalised server URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login authenticates and stores the session cookie.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	payload := map[string]string{"username": username, "password": password}
	var session Session
	if err := c.mutate(ctx, http.MethodPost, "/api/login", payload, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// ClearSession forgets the session cookie without contacting the server, e.g.
// after the server answered 401. Jars installed through WithHTTPClient are
// left alone.
func (c *Client) ClearSession() {
	c.jar.reset()
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.mutate(ctx, http.MethodPost, "/api/logout", nil, nil)
}

// LoggedIn returns the current session, or nil when not authenticated.
func (c *Client) LoggedIn(ctx context.Context) (*Session, error) {
	body, err := c.query(ctx, "/api/loggedin", nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(body)) == "false" {
		return nil, nil
	}
	var session Session
	if err := decode(body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// FetchVideos lists all videos visible to the logged-in user.
func (c *Client) FetchVideos(ctx context.Context, sort string) ([]Video, error) {
	return c.fetchVideoList(ctx, "/api/videos", sort)
}

// FetchPublicVideos lists public, available videos.
func (c *Client) FetchPublicVideos(ctx context.Context, sort string) ([]Video, error) {
	return c.fetchVideoList(ctx, "/api/videos/public", sort)
}

func (c *Client) fetchVideoList(ctx context.Context, path, sort string) ([]Video, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if s := strings.TrimSpace(sort); s != "" {
		values.Set("sort", s)
	}
	var payload VideoListResponse
	if err := c.getJSON(ctx, path, values, &payload); err != nil {
		return nil, err
	}
	return payload.Videos, nil
}

// FetchVideoDetails returns a single video.
func (c *Client) FetchVideoDetails(ctx context.Context, videoID string) (Video, error) {
	if strings.TrimSpace(videoID) == "" {
		return Video{}, fmt.Errorf("video id required")
	}
	var v Video
	if err := c.getJSON(ctx, "/api/video/details/"+url.PathEscape(videoID), nil, &v); err != nil {
		return Video{}, err
	}
	return v, nil
}

// UpdateVideoDetails applies a partial update to a video's metadata.
func (c *Client) UpdateVideoDetails(ctx context.Context, videoID string, update DetailsUpdate) error {
	if strings.TrimSpace(videoID) == "" {
		return fmt.Errorf("video id required")
	}
	return c.mutate(ctx, http.MethodPut, "/api/video/details/"+url.PathEscape(videoID), update, nil)
}

// DeleteVideo removes a video.
func (c *Client) DeleteVideo(ctx context.Context, videoID string) error {
	return c.mutate(ctx, http.MethodDelete, "/api/video/delete/"+url.PathEscape(videoID), nil, nil)
}

// SetVideoGame assigns a game to a video.
func (c *Client) SetVideoGame(ctx context.Context, videoID, game string) error {
	return c.mutate(ctx, http.MethodPut, "/api/video/"+url.PathEscape(videoID)+"/game", map[string]string{"game": game}, nil)
}

// AddVideoTags attaches tags to a video.
func (c *Client) AddVideoTags(ctx context.Context, videoID string, tags []string) error {
	return c.mutate(ctx, http.MethodPost, "/api/video/"+url.PathEscape(videoID)+"/tags", map[string][]string{"tags": tags}, nil)
}

// Upload sends a local file as multipart/form-data. The result carries a job
// id when the server processes the video asynchronously.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if strings.TrimSpace(req.FilePath) == "" {
		return UploadResult{}, fmt.Errorf("file path required")
	}
	if strings.TrimSpace(req.Game) == "" {
		return UploadResult{}, fmt.Errorf("game required")
	}
	file, err := os.Open(req.FilePath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(form, file, req))
	}()

	path := "/api/upload"
	if req.Public {
		path = "/api/upload/public"
	}
	body, err := c.send(ctx, c.upload, http.MethodPost, &url.URL{Path: path}, pr, form.FormDataContentType())
	_ = pr.Close()
	if err != nil {
		return UploadResult{}, err
	}
	var result UploadResult
	if err := decode(body, &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

func writeUploadForm(form *multipart.Writer, file *os.File, req UploadRequest) error {
	part, err := form.CreateFormFile("file", filepath.Base(req.FilePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := form.WriteField("game", strings.TrimSpace(req.Game)); err != nil {
		return err
	}
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag == "" {
			continue
		}
		if err := form.WriteField("tags[]", tag); err != nil {
			return err
		}
	}
	return form.Close()
}

// FetchProcessingStatus returns the server-side state of an upload job.
// Status polls are never coalesced or retried; the tracker owns that policy.
func (c *Client) FetchProcessingStatus(ctx context.Context, jobID string) (ProcessingStatus, error) {
	if strings.TrimSpace(jobID) == "" {
		return ProcessingStatus{}, fmt.Errorf("job id required")
	}
	rel := &url.URL{Path: "/api/upload/status/" + url.PathEscape(jobID)}
	body, err := c.send(ctx, c.http, http.MethodGet, rel, nil, "")
	if err != nil {
		return ProcessingStatus{}, err
	}
	var status ProcessingStatus
	if err := decode(body, &status); err != nil {
		return ProcessingStatus{}, err
	}
	return status, nil
}

// FetchGames lists all games.
func (c *Client) FetchGames(ctx context.Context) ([]Game, error) {
	var payload struct {
		Games []Game `json:"games"`
	}
	if err := c.getJSON(ctx, "/api/games", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Games, nil
}

// SearchGames finds games matching q.
func (c *Client) SearchGames(ctx context.Context, q string) ([]Game, error) {
	var payload struct {
		Games []Game `json:"games"`
	}
	if err := c.getJSON(ctx, "/api/games/search", url.Values{"q": {q}}, &payload); err != nil {
		return nil, err
	}
	return payload.Games, nil
}

// FetchTags lists all tags.
func (c *Client) FetchTags(ctx context.Context) ([]Tag, error) {
	var payload struct {
		Tags []Tag `json:"tags"`
	}
	if err := c.getJSON(ctx, "/api/tags", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tags, nil
}

// SearchTags finds tags matching q.
func (c *Client) SearchTags(ctx context.Context, q string) ([]Tag, error) {
	var payload struct {
		Tags []Tag `json:"tags"`
	}
	if err := c.getJSON(ctx, "/api/tags/search", url.Values{"q": {q}}, &payload); err != nil {
		return nil, err
	}
	return payload.Tags, nil
}

// FetchPublicConfig returns the UI configuration exposed to every client.
func (c *Client) FetchPublicConfig(ctx context.Context) (PublicConfig, error) {
	var cfg PublicConfig
	if err := c.getJSON(ctx, "/api/config", nil, &cfg); err != nil {
		return PublicConfig{}, err
	}
	return cfg, nil
}

// FetchSetupStatus reports whether the server still needs first-run setup.
func (c *Client) FetchSetupStatus(ctx context.Context) (SetupStatus, error) {
	var status SetupStatus
	if err := c.getJSON(ctx, "/api/setup/status", nil, &status); err != nil {
		return SetupStatus{}, err
	}
	return status, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	body, err := c.query(ctx, path, params)
	if err != nil {
		return err
	}
	return decode(body, dest)
}

// query issues a GET. Identical concurrent queries share a single request;
// the key is released as soon as that request settles.
func (c *Client) query(ctx context.Context, path string, params url.Values) ([]byte, error) {
	rel := &url.URL{Path: path, RawQuery: params.Encode()}
	key := requestKey(http.MethodGet, rel)
	shared := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(key, func() (any, error) {
		return c.getWithRetry(shared, rel)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) getWithRetry(ctx context.Context, rel *url.URL) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		body, err := c.send(ctx, c.http, http.MethodGet, rel, nil, "")
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !Retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) mutate(ctx context.Context, method, path string, payload, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	var body io.Reader
	contentType := ""
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	resp, err := c.send(ctx, c.http, method, &url.URL{Path: path}, body, contentType)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return decode(resp, dest)
}

func (c *Client) send(ctx context.Context, hc *http.Client, method string, rel *url.URL, body io.Reader, contentType string) ([]byte, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Method:     method,
			Path:       rel.Path,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(data),
		}
	}
	return data, nil
}

func decode(body []byte, dest any) error {
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func requestKey(method string, rel *url.URL) string {
	return "request:" + strings.ToLower(method) + ":" + rel.Path + ":" + rel.RawQuery
}

func parseBaseURL(serverURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		trimmed = defaultServerURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", serverURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// sessionJar is a cookie jar that can be emptied while requests are in
// flight.
type sessionJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &sessionJar{jar: jar}, nil
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

func (j *sessionJar) reset() {
	fresh, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = fresh
}
