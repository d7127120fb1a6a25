package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/ember/internal/config"
	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/hints"
	"github.com/five82/ember/internal/jobs"
	"github.com/five82/ember/internal/kvcache"
	"github.com/five82/ember/internal/prefs"
	"github.com/five82/ember/internal/state"
	"github.com/five82/ember/internal/ui"
)

// Options configure the ember application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/ember/prefs.toml
	PollEvery  int    // seconds; zero uses the config's poll_interval
}

const (
	connectTimeout  = 5 * time.Second
	cacheKeyConfig  = "public_config"
	cacheKeyGames   = "games"
	cacheKeyTags    = "tags"
	processingGrace = time.Second
)

// ErrNeedsSetup is returned when the server has not finished first-run setup.
var ErrNeedsSetup = errors.New("fireshare has not been set up yet, finish setup in the web UI first")

// Run boots the ember TUI until the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logFile, err := tea.LogToFile(cfg.LogPath(), "ember")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs, err := prefs.Open(prefsPath)
	if err != nil {
		return fmt.Errorf("open prefs: %w", err)
	}

	cache, err := kvcache.Open(cfg.CachePath())
	if err != nil {
		log.Printf("response cache disabled: %v", err)
		cache = nil
	} else {
		defer func() { _ = cache.Close() }()
		if n, err := cache.Purge(ctx); err != nil {
			log.Printf("purge cache: %v", err)
		} else if n > 0 {
			log.Printf("purged %d expired cache entries", n)
		}
	}

	client, err := fireshare.NewClient(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("init fireshare client: %w", err)
	}

	session, err := connect(ctx, client, cfg)
	if err != nil {
		return err
	}

	publicCfg, err := kvcache.Remember(ctx, cache, cacheKeyConfig, 0, client.FetchPublicConfig)
	if err != nil {
		log.Printf("fetch public config: %v", err)
	}
	games := gameNames(ctx, cache, client)
	tags := tagNames(ctx, cache, client)

	interval := cfg.PollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Second
	}

	svc := newServices(client, jobs.Policy{
		Interval:    cfg.ProcessingInterval,
		MaxInterval: maxBackoff,
		MaxDuration: cfg.ProcessingTimeout,
		GraceDelay:  processingGrace,
	}, interval)
	defer svc.tracker.Close()

	svc.store.SetQuery(state.Query{
		Public: session == nil,
		Sort:   userPrefs.String(prefs.KeySortOption, prefs.Defaults().SortOption),
	})

	// Start background poller
	svc.poller.Start(ctx)

	log.Printf("ember started against %s (logged in: %v)", client.BaseURL(), session != nil)

	return ui.Run(ui.Options{
		Context:      ctx,
		Uploader:     client,
		Editor:       client,
		Store:        svc.store,
		Feed:         svc.poller,
		Jobs:         svc.tracker,
		Hints:        svc.hints,
		Prefs:        userPrefs,
		Session:      session,
		PublicConfig: publicCfg,
		BaseURL:      client.BaseURL(),
		Games:        games,
		Tags:         tags,
		LogPath:      cfg.LogPath(),
		PollTick:     ui.DefaultUIInterval,
	})
}

// connect checks the server is reachable and set up, then logs in when
// credentials are configured. A nil session means public browsing.
func connect(ctx context.Context, client *fireshare.Client, cfg config.Config) (*fireshare.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	status, err := client.FetchSetupStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("fireshare not reachable at %s: %w", client.BaseURL(), err)
	}
	if status.NeedsSetup {
		return nil, ErrNeedsSetup
	}
	if !cfg.HasCredentials() {
		return nil, nil
	}
	session, err := client.Login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("log in as %s: %w", cfg.Username, err)
	}
	return &session, nil
}

func gameNames(ctx context.Context, cache *kvcache.Cache, client *fireshare.Client) []string {
	games, err := kvcache.Remember(ctx, cache, cacheKeyGames, 0, client.FetchGames)
	if err != nil {
		log.Printf("fetch games: %v", err)
		return nil
	}
	names := make([]string, 0, len(games))
	for _, g := range games {
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	return names
}

func tagNames(ctx context.Context, cache *kvcache.Cache, client *fireshare.Client) []string {
	tags, err := kvcache.Remember(ctx, cache, cacheKeyTags, 0, client.FetchTags)
	if err != nil {
		log.Printf("fetch tags: %v", err)
		return nil
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names
}

// services holds the long-lived pieces shared by the poller, the tracker and
// the UI.
type services struct {
	store   *state.Store
	hints   *hints.Hints
	poller  *Poller
	tracker *jobs.Tracker
}

func newServices(client *fireshare.Client, policy jobs.Policy, interval time.Duration) *services {
	s := &services{
		store: &state.Store{},
		hints: &hints.Hints{},
	}
	s.poller = NewPoller(s.store, client, interval)
	s.poller.onUnauthorized = client.ClearSession
	s.tracker = jobs.NewTracker(client, jobs.Options{
		Policy:     policy,
		OnComplete: s.jobCompleted,
		OnFailed:   s.jobFailed,
	})
	return s
}

// jobCompleted marks the current feed as having content, so the refetch that
// follows never flashes a skeleton, and refetches the list.
func (s *services) jobCompleted(videoID string) {
	log.Printf("processing finished for video %s", videoID)
	s.hints.Mark(hints.RouteKey(ui.RouteName(s.store.Query().Public)))
	s.poller.Invalidate()
}

func (s *services) jobFailed(job jobs.Job) {
	reason := job.Err
	if reason == "" {
		reason = string(job.Status)
	}
	title := job.Title
	if title == "" {
		title = job.VideoID
	}
	log.Printf("processing job %s for %s ended: %s", job.JobID, job.VideoID, reason)
	s.store.Notify(fmt.Sprintf("Processing failed for %s: %s", title, reason))
}
