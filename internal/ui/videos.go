package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/hints"
	"github.com/five82/ember/internal/library"
	"github.com/five82/ember/internal/prefs"
)

// handleLibraryKey processes keyboard input for the video library.
func (m Model) handleLibraryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	step := 1
	if m.listStyle == prefs.StyleCard {
		step = m.gridColumns()
	}

	switch {
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.NextFolder):
		m.setFolder(m.stepFolder(1))
	case key.Matches(msg, m.keys.PrevFolder):
		m.setFolder(m.stepFolder(-1))

	case key.Matches(msg, m.keys.CycleSort):
		m.sort = library.NextSort(m.sort).Value
		m.savePref(prefs.KeySortOption, m.sort)
		if m.feed != nil {
			m.feed.SetQuery(m.public, m.sort)
		}

	case key.Matches(msg, m.keys.ToggleFeed):
		if m.session == nil {
			m.notify("Log in to see your own videos")
			return m, nil
		}
		m.public = !m.public
		m.selected = 0
		if m.feed != nil {
			m.feed.SetQuery(m.public, m.sort)
		}

	case key.Matches(msg, m.keys.ToggleStyle):
		m.toggleListStyle()

	case key.Matches(msg, m.keys.Bigger):
		m.resizeCards(CardSizeStep)
	case key.Matches(msg, m.keys.Smaller):
		m.resizeCards(-CardSizeStep)

	case key.Matches(msg, m.keys.ToggleDrawer):
		m.drawerOpen = !m.drawerOpen
		m.savePref(prefs.KeyDrawerOpen, m.drawerOpen)

	case key.Matches(msg, m.keys.Upload):
		public := m.session == nil
		if public && !m.publicCfg.AllowPublicUpload {
			m.notify("Public uploads are disabled on this server")
			return m, nil
		}
		form := newUploadForm(m.games, m.tags, public)
		m.modal = form
		return m, form.inputs[fieldPath].Focus()

	case key.Matches(msg, m.keys.Edit):
		v, ok := m.editTarget()
		if !ok {
			return m, nil
		}
		form := newEditForm(v, m.games, m.tags)
		m.modal = form
		return m, form.inputs[editTitle].Focus()

	case key.Matches(msg, m.keys.Delete):
		if v, ok := m.editTarget(); ok {
			m.modal = confirmDelete{video: v}
		}

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-step)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(step)
	case key.Matches(msg, m.keys.Left):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveSelection(-step * max(m.visibleRows(m.height-3), 1))
	case key.Matches(msg, m.keys.PageDown):
		m.moveSelection(step * max(m.visibleRows(m.height-3), 1))
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = max(len(m.entries)-1, 0)
	}
	return m, nil
}

// handleSearchKey edits the search filter. The list is filtered as the user
// types; enter keeps the filter and esc clears it.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.searching = false
		m.search.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.refreshEntries()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.selected = 0
	m.refreshEntries()
	return m, cmd
}

func (m *Model) moveSelection(delta int) {
	if len(m.entries) == 0 {
		m.selected = 0
		return
	}
	m.selected = clamp(m.selected+delta, 0, len(m.entries)-1)
}

// selectableFolders is the folder list without the games header.
func (m Model) selectableFolders() []string {
	out := make([]string, 0, len(m.folders))
	for _, f := range m.folders {
		if f != library.GamesHeader {
			out = append(out, f)
		}
	}
	return out
}

func (m Model) stepFolder(delta int) string {
	folders := m.selectableFolders()
	if len(folders) == 0 {
		return library.AllVideos
	}
	idx := 0
	for i, f := range folders {
		if f == m.folder {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(folders)) % len(folders)
	return folders[idx]
}

func (m *Model) setFolder(folder string) {
	if folder == m.folder {
		return
	}
	m.folder = folder
	m.selected = 0
	m.savePref(prefs.KeyFolder, folder)
	m.refreshEntries()
}

// toggleListStyle switches between cards and rows. The card size in use is
// remembered while the list style is active.
func (m *Model) toggleListStyle() {
	if m.listStyle == prefs.StyleCard {
		m.listStyle = prefs.StyleList
		m.savePref(prefs.KeyLastCard, m.cardSize)
	} else {
		m.listStyle = prefs.StyleCard
		if m.prefs != nil {
			m.cardSize = m.prefs.Int(prefs.KeyLastCard, m.cardSize)
		}
		m.savePref(prefs.KeyCardSize, m.cardSize)
	}
	m.savePref(prefs.KeyListStyle, m.listStyle)
}

func (m *Model) resizeCards(delta int) {
	if m.listStyle != prefs.StyleCard {
		return
	}
	size := clamp(m.cardSize+delta, CardSizeMin, CardSizeMax)
	if size == m.cardSize {
		return
	}
	m.cardSize = size
	m.savePref(prefs.KeyCardSize, size)
}

// contentWidth is the width left for the list after the drawer.
func (m Model) contentWidth() int {
	if m.showDrawer() {
		return max(m.width-drawerWidth-1, 1)
	}
	return max(m.width, 1)
}

func (m Model) showDrawer() bool {
	return m.drawerOpen && m.width >= LayoutDrawerWidth
}

// gridColumns is the number of cards per row.
func (m Model) gridColumns() int {
	if m.listStyle != prefs.StyleCard {
		return 1
	}
	return max(m.contentWidth()/(cardWidth(m.cardSize)+1), 1)
}

// visibleRows is how many rows of cards or list lines fit into height.
func (m Model) visibleRows(height int) int {
	if m.listStyle == prefs.StyleCard {
		return max(height/cardHeight, 1)
	}
	return max(height-1, 1)
}

// renderLibrary renders the drawer and the video list.
func (m Model) renderLibrary(height int) string {
	content := m.renderVideoPane(m.contentWidth(), height)
	if !m.showDrawer() {
		return content
	}
	drawer := m.renderDrawer(height)
	return lipgloss.JoinHorizontal(lipgloss.Top, drawer, " ", content)
}

func (m Model) renderVideoPane(width, height int) string {
	styles := m.theme.Styles()
	loading := m.snapshot.Loading()
	route := hints.RouteKey(RouteName(m.public))

	if m.gate.Visible() && m.hints.ShowSkeleton(route, loading) {
		return m.renderSkeleton(width, height)
	}

	if len(m.entries) == 0 {
		switch {
		case m.search.Value() != "" || m.folder != library.AllVideos:
			return styles.MutedText.Render("No videos match the current filter.")
		case m.hints.ShowEmpty(hints.ComponentKey(listComponent), loading, m.snapshot.HasVideos, 0):
			msg := "No videos found."
			if m.snapshot.LastError != nil {
				msg = "Could not load videos: " + fireshare.UserMessage(m.snapshot.LastError)
			}
			return styles.MutedText.Render(msg) + "\n" +
				styles.FaintText.Render("Press u to upload a clip.")
		default:
			return ""
		}
	}

	if m.listStyle == prefs.StyleList {
		return m.renderRows(width, height)
	}
	return m.renderCards(width, height)
}

// firstVisible returns the first row to draw so that the selection stays on
// screen.
func firstVisible(selectedRow, visible int) int {
	if selectedRow < visible {
		return 0
	}
	return selectedRow - visible + 1
}

func (m Model) renderCards(width, height int) string {
	cols := m.gridColumns()
	cw := cardWidth(m.cardSize)
	visible := m.visibleRows(height)
	start := firstVisible(m.selected/cols, visible)

	var rows []string
	for r := start; r < start+visible; r++ {
		first := r * cols
		if first >= len(m.entries) {
			break
		}
		last := min(first+cols, len(m.entries))
		cards := make([]string, 0, cols)
		for i := first; i < last; i++ {
			cards = append(cards, m.renderCard(m.entries[i], cw, i == m.selected))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(strings.Join(rows, "\n"))
}

func (m Model) renderCard(e library.Entry, width int, selected bool) string {
	styles := m.theme.Styles()
	inner := max(width-4, 4)

	border := m.theme.Border
	if selected {
		border = m.theme.BorderFocus
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(0, 1).
		Width(width - 2).
		Height(cardHeight - 2)

	title := styles.Text.Bold(true).Render(truncate(e.Title(), inner))
	var lines []string
	if e.Placeholder() {
		job := *e.Job
		lines = []string{
			title,
			styles.JobStyle(string(job.Status)).Render(library.Caption(job)),
			m.renderJobProgress(job.Progress, inner),
			styles.FaintText.Render("started " + humanizeDuration(time.Since(job.StartedAt)) + " ago"),
		}
	} else {
		v := e.Video
		meta := formatClipLength(v.DurationSeconds()) + " · " + formatViews(v.Views)
		if v.IsPrivate() {
			meta += " · private"
		}
		lines = []string{
			title,
			styles.AccentText.Render(truncate(v.Game(), inner)),
			styles.MutedText.Render(truncate(meta, inner)),
			styles.FaintText.Render(truncate(strings.Join(v.Tags(), ", "), inner)),
		}
	}
	return box.Render(strings.Join(lines, "\n"))
}

// renderJobProgress draws a determinate bar once the server reports progress
// and a spinner before that.
func (m Model) renderJobProgress(percent, width int) string {
	if percent <= 0 {
		return m.spinner.View() + " " + m.theme.Styles().MutedText.Render("Processing")
	}
	bar := m.progress
	bar.Width = width
	return bar.ViewAs(float64(percent) / 100)
}

func (m Model) renderRows(width, height int) string {
	styles := m.theme.Styles()
	visible := m.visibleRows(height)
	start := firstVisible(m.selected, visible)
	titleWidth := clamp(width/3, 16, 60)

	header := styles.FaintText.Render(fmt.Sprintf("  %-*s  %-16s  %7s  %s", titleWidth, "Title", "Game", "Length", "Views"))
	lines := []string{header}
	for i := start; i < len(m.entries) && i < start+visible; i++ {
		e := m.entries[i]
		marker := "  "
		if i == m.selected {
			marker = styles.AccentText.Render("▌ ")
		}
		title := fmt.Sprintf("%-*s", titleWidth, truncate(e.Title(), titleWidth))
		var rest string
		if e.Placeholder() {
			job := *e.Job
			rest = styles.JobStyle(string(job.Status)).Render(library.Caption(job)) + " " +
				m.renderJobProgress(job.Progress, 20)
		} else {
			v := e.Video
			rest = styles.AccentText.Render(fmt.Sprintf("%-16s", truncate(v.Game(), 16))) + "  " +
				styles.MutedText.Render(fmt.Sprintf("%7s  %d", formatClipLength(v.DurationSeconds()), v.Views))
			if v.IsPrivate() {
				rest += styles.FaintText.Render("  private")
			}
		}
		line := marker + styles.Text.Render(title) + "  " + rest
		if i == m.selected {
			line = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.SelectionBg)).Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(strings.Join(lines, "\n"))
}

// skeletonMarker fills placeholder cards while the first fetch is in flight.
const skeletonMarker = "░"

func (m Model) renderSkeleton(width, height int) string {
	cw := cardWidth(m.cardSize)
	cols := max(width/(cw+1), 1)
	rows := min(m.visibleRows(height), 2)

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderMuted)).
		Foreground(lipgloss.Color(m.theme.Faint)).
		Padding(0, 1).
		Width(cw - 2).
		Height(cardHeight - 2)
	n := max(cw-6, 2)
	card := style.Render(strings.Join([]string{
		strings.Repeat(skeletonMarker, n),
		"",
		strings.Repeat(skeletonMarker, n/2),
	}, "\n"))

	line := lipgloss.JoinHorizontal(lipgloss.Top, repeat(card, cols)...)
	return strings.Join(repeat(line, rows), "\n")
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// renderDrawer lists folders, highlighting the active one.
func (m Model) renderDrawer(height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	inner := drawerWidth - 2

	lines := []string{styles.MutedText.Bold(true).Render("Folders")}
	folders := m.folders
	if len(folders) == 0 {
		folders = []string{library.AllVideos}
	}
	for _, f := range folders {
		label := truncate(f, inner)
		switch {
		case f == library.GamesHeader:
			lines = append(lines, styles.FaintText.Render(label))
		case f == m.folder:
			lines = append(lines, styles.Selected.Width(inner).Render(label))
		default:
			lines = append(lines, styles.Text.Render(label))
		}
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Width(drawerWidth).
		Height(height).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// selectedEntry returns the highlighted entry, if any.
func (m Model) selectedEntry() (library.Entry, bool) {
	if m.selected < 0 || m.selected >= len(m.entries) {
		return library.Entry{}, false
	}
	return m.entries[m.selected], true
}

// watchURL is the share link for a video.
func (m Model) watchURL(videoID string) string {
	link := m.publicCfg.WatchURL(m.baseURL, videoID)
	if m.forceSSL && strings.HasPrefix(link, "http://") {
		link = "https://" + strings.TrimPrefix(link, "http://")
	}
	return link
}
