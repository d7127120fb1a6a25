package ui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/hints"
	"github.com/five82/ember/internal/jobs"
	"github.com/five82/ember/internal/library"
	"github.com/five82/ember/internal/logtail"
	"github.com/five82/ember/internal/prefs"
	"github.com/five82/ember/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewLibrary View = iota
	ViewLogs
)

// Uploader sends local files to the server. Implemented by *fireshare.Client.
type Uploader interface {
	Upload(ctx context.Context, req fireshare.UploadRequest) (fireshare.UploadResult, error)
}

// Feed controls which video list the background poller keeps fresh.
type Feed interface {
	SetQuery(public bool, sort string)
	Invalidate()
}

// JobRegistry tracks uploads that are still processing. Implemented by
// *jobs.Tracker.
type JobRegistry interface {
	Register(ctx context.Context, job jobs.Job) bool
	Jobs() []jobs.Job
}

// Options configures the UI.
type Options struct {
	Context  context.Context
	Uploader Uploader
	Editor   Editor
	Store    *state.Store
	Feed     Feed
	Jobs     JobRegistry
	Hints    *hints.Hints
	Prefs    *prefs.Store

	Session      *fireshare.Session // nil browses the public feed
	PublicConfig fireshare.PublicConfig
	BaseURL      string
	Games        []string
	Tags         []string
	LogPath      string
	PollTick     time.Duration
}

// RouteName names the view showing the public or the personal feed. Hints
// are keyed by it.
func RouteName(public bool) string {
	if public {
		return "public"
	}
	return "videos"
}

// listComponent keys the hint for the video list itself.
const listComponent = "video-list"

// renderBoundary records a panic raised while rendering. It is shared by all
// copies of a Model.
type renderBoundary struct {
	err string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	uploader  Uploader
	editor    Editor
	store     *state.Store
	feed      Feed
	jobs      JobRegistry
	hints     *hints.Hints
	prefs     *prefs.Store
	session   *fireshare.Session
	publicCfg fireshare.PublicConfig
	baseURL   string
	games     []string
	tags      []string
	logPath   string
	pollTick  time.Duration

	// UI state
	keys        keyMap
	theme       Theme
	themeName   string
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	modal       Modal
	notices     []string
	boundary    *renderBoundary
	gate        *hints.LoadingGate
	spinner     spinner.Model
	progress    progress.Model

	// Preferences mirrored from the prefs store
	public     bool
	sort       string
	folder     string
	listStyle  string
	cardSize   int
	drawerOpen bool
	darkMode   bool
	forceSSL   bool

	// Data state
	snapshot    state.Snapshot
	pending     []jobs.Job
	entries     []library.Entry
	folders     []string
	lastUpdated time.Time

	// Library state
	selected  int
	search    textinput.Model
	searching bool

	// Log state
	logViewport viewport.Model
	logLines    []logtail.Line
	logFollow   bool
	logErr      string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}

	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	h := opts.Hints
	if h == nil {
		h = &hints.Hints{}
	}

	p := prefs.Defaults()
	if opts.Prefs != nil {
		p = opts.Prefs.Prefs()
	}

	search := textinput.New()
	search.Placeholder = "Search videos..."
	search.Prompt = "/"
	search.CharLimit = 100

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := Model{
		ctx:       ctx,
		uploader:  opts.Uploader,
		editor:    opts.Editor,
		store:     store,
		feed:      opts.Feed,
		jobs:      opts.Jobs,
		hints:     h,
		prefs:     opts.Prefs,
		session:   opts.Session,
		publicCfg: opts.PublicConfig,
		baseURL:   opts.BaseURL,
		games:     opts.Games,
		tags:      opts.Tags,
		logPath:   opts.LogPath,
		pollTick:  pollTick,

		keys:        DefaultKeyMap(),
		themeName:   p.Theme,
		theme:       GetTheme(p.Theme, p.DarkMode),
		currentView: ViewLibrary,
		boundary:    &renderBoundary{},
		gate:        hints.NewLoadingGate(),
		spinner:     sp,
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),

		public:     opts.Session == nil,
		sort:       p.SortOption,
		folder:     p.Folder,
		listStyle:  p.ListStyle,
		cardSize:   p.CardSize,
		drawerOpen: p.DrawerOpen,
		darkMode:   p.DarkMode,
		forceSSL:   p.ForceSSL,

		search:    search,
		logFollow: true,
	}
	m.logViewport = viewport.New(0, 0)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchSnapshotCmd(m.store, m.jobs),
		tickCmd(m.pollTick),
		m.spinner.Tick,
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.applySnapshot(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case uploadRequestMsg:
		if m.uploader == nil {
			return m, nil
		}
		m.notify("Uploading " + msg.title + "...")
		return m, uploadCmd(m.ctx, m.uploader, msg.req, msg.title)

	case uploadDoneMsg:
		m.dropNotice("Uploading " + msg.title + "...")
		m.handleUploadDone(msg)
		return m, nil

	case editRequestMsg:
		return m.startEdit(msg.edit)

	case editDoneMsg:
		m.finishEdit(msg)
		return m, nil

	case deleteRequestMsg:
		return m.startDelete(msg.video)

	case deleteDoneMsg:
		m.finishDelete(msg)
		return m, nil

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil
	}

	if m.modal != nil {
		modal, cmd, _ := m.modal.Update(msg, m.keys)
		m.modal = modal
		return m, cmd
	}
	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.themeName = NextTheme(m.themeName)
		m.theme = GetTheme(m.themeName, m.darkMode)
		m.savePref(prefs.KeyTheme, m.themeName)
		return m, nil

	case key.Matches(msg, m.keys.DarkMode):
		m.darkMode = !m.darkMode
		m.theme = GetTheme(m.themeName, m.darkMode)
		m.savePref(prefs.KeyDarkMode, m.darkMode)
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		m.boundary.err = ""
		if m.feed != nil {
			m.feed.Invalidate()
		}
		if m.currentView == ViewLogs {
			return m, loadLogsCmd(m.logPath)
		}
		return m, fetchSnapshotCmd(m.store, m.jobs)

	case key.Matches(msg, m.keys.Dismiss):
		if len(m.notices) > 0 {
			m.notices = m.notices[1:]
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.currentView == ViewLibrary {
			return m.switchView(ViewLogs)
		}
		return m.switchView(ViewLibrary)

	case key.Matches(msg, m.keys.ViewLibrary), key.Matches(msg, m.keys.Escape):
		return m.switchView(ViewLibrary)

	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	}

	switch m.currentView {
	case ViewLogs:
		return m.handleLogsKey(msg)
	default:
		return m.handleLibraryKey(msg)
	}
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.currentView = v
	if v == ViewLogs {
		return m, loadLogsCmd(m.logPath)
	}
	return m, nil
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{fetchSnapshotCmd(m.store, m.jobs)}
	if m.currentView == ViewLogs && m.logFollow {
		cmds = append(cmds, loadLogsCmd(m.logPath))
	}
	cmds = append(cmds, tickCmd(m.pollTick))
	return m, tea.Batch(cmds...)
}

func (m *Model) applySnapshot(msg snapshotMsg) {
	m.snapshot = msg.snapshot
	m.pending = msg.pending
	if msg.snapshot.SessionExpired && m.session != nil {
		m.session = nil
		m.public = true
	}
	if !msg.snapshot.LastUpdated.IsZero() {
		m.lastUpdated = msg.snapshot.LastUpdated
	}
	for _, n := range msg.notices {
		m.notify(n)
	}
	m.refreshEntries()
}

// refreshEntries rebuilds the rendered list from the latest snapshot, jobs
// and filters.
func (m *Model) refreshEntries() {
	m.folders = library.Folders(m.snapshot.Videos)
	if m.snapshot.HasVideos && !m.folderKnown(m.folder) {
		m.folder = library.AllVideos
		m.savePref(prefs.KeyFolder, m.folder)
	}

	m.entries = library.Build(m.snapshot.Videos, m.pending, library.Filter{
		Search: m.search.Value(),
		Folder: m.folder,
	})

	loading := m.snapshot.Loading()
	m.gate.Set(loading)
	if m.snapshot.HasVideos {
		m.hints.Observe(hints.RouteKey(RouteName(m.public)), len(m.snapshot.Videos)+len(m.pending))
	}
	m.hints.Observe(hints.ComponentKey(listComponent), len(m.entries))

	if m.selected >= len(m.entries) {
		m.selected = len(m.entries) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) folderKnown(folder string) bool {
	for _, f := range m.folders {
		if f == folder {
			return true
		}
	}
	return false
}

// notify queues a dismissible notice, skipping exact repeats.
func (m *Model) notify(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, n := range m.notices {
		if n == text {
			return
		}
	}
	m.notices = append(m.notices, text)
}

func (m *Model) dropNotice(text string) {
	for i, n := range m.notices {
		if n == text {
			m.notices = append(m.notices[:i], m.notices[i+1:]...)
			return
		}
	}
}

// savePref persists one preference. Failures are shown but do not stop the UI.
func (m *Model) savePref(key string, value any) {
	if m.prefs == nil {
		return
	}
	if err := m.prefs.Set(key, value); err != nil {
		log.Printf("save pref %s failed: %v", key, err)
		m.notify("Could not save preferences: " + err.Error())
	}
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	noticeLines := 0
	if notices := m.renderNotices(); notices != "" {
		b.WriteString(notices)
		b.WriteString("\n")
		noticeLines = min(len(m.notices), maxNotices)
	}

	contentHeight := max(m.height-3-noticeLines, 1)
	b.WriteString(m.safeRender("content", func() string {
		return m.renderContent(contentHeight)
	}))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent(height int) string {
	switch m.currentView {
	case ViewLogs:
		return m.renderLogs(height)
	default:
		return m.renderLibrary(height)
	}
}

// safeRender draws render, replacing it with a fallback panel when it
// panics. The fallback stays until the user reloads.
func (m Model) safeRender(name string, render func() string) (out string) {
	if m.boundary.err != "" {
		return m.renderCrashed()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render %s panicked: %v", name, r)
			m.boundary.err = fmt.Sprint(r)
			out = m.renderCrashed()
		}
	}()
	return render()
}

func (m Model) renderCrashed() string {
	styles := m.theme.Styles()
	return strings.Join([]string{
		styles.DangerText.Render("Something went wrong while drawing this view."),
		styles.MutedText.Render(truncate(m.boundary.err, max(m.width-2, 10))),
		styles.AccentText.Render("Press r to reload."),
	}, "\n")
}

// Messages

type tickMsg time.Time

type snapshotMsg struct {
	snapshot state.Snapshot
	pending  []jobs.Job
	notices  []string
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store, registry JobRegistry) tea.Cmd {
	return func() tea.Msg {
		msg := snapshotMsg{snapshot: store.Snapshot(), notices: store.TakeNotices()}
		if registry != nil {
			msg.pending = registry.Jobs()
		}
		return msg
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
