package ui

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/library"
	"github.com/five82/ember/internal/prefs"
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("ember", styles.Logo)}

	switch {
	case m.snapshot.IsOffline():
		parts = append(parts,
			bg.Render("OFFLINE", styles.DangerText.Bold(true)),
			bg.Render("Retrying...", styles.WarningText.Bold(true)))
	case m.snapshot.Fetching && !m.snapshot.HasVideos:
		parts = append(parts, bg.Render("Connecting to "+m.serverHost()+"...", styles.WarningText.Bold(true)))
	default:
		parts = append(parts, bg.Render("● "+m.serverHost(), styles.SuccessText))
	}

	feed := "Public"
	if !m.public {
		feed = "My videos"
	}
	if m.session != nil && !compact {
		feed += " (" + m.session.User.Username + ")"
	}
	parts = append(parts, bg.Render(feed, styles.AccentText))

	parts = append(parts,
		bg.Render("Videos:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", len(m.snapshot.Videos)), styles.Text))

	if n := len(m.pending); n > 0 {
		color := lipgloss.Color(m.theme.JobColors["processing"])
		parts = append(parts,
			bg.Render("Processing:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", n), lipgloss.NewStyle().Foreground(color)))
	}

	if !compact {
		parts = append(parts, bg.Render("Sort:", styles.MutedText)+bg.Space()+
			bg.Render(library.SortLabel(m.sort), styles.Text))
	}

	if ts := m.formatTimestamp(); ts != "" {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	if err := m.snapshot.LastError; err != nil && !m.snapshot.IsOffline() {
		maxErr := 60
		if compact {
			maxErr = 30
		}
		parts = append(parts,
			bg.Render("!", styles.WarningText.Bold(true))+bg.Space()+
				bg.Render(truncate(fireshare.UserMessage(err), maxErr), styles.WarningText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) serverHost() string {
	if u, err := url.Parse(m.baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	if m.baseURL == "" {
		return "server"
	}
	return m.baseURL
}

// formatTimestamp formats the last update time with relative indicator.
func (m Model) formatTimestamp() string {
	if m.lastUpdated.IsZero() {
		return ""
	}
	since := time.Since(m.lastUpdated)
	ts := m.lastUpdated.Format("15:04:05")
	if since < time.Minute {
		return ts + " (now)"
	}
	return ts + " (" + humanizeDuration(since) + " ago)"
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewLogs:
		followLabel := "Pause"
		if !m.logFollow {
			followLabel = "Follow"
		}
		commands = []cmd{
			{"Space", followLabel},
			{"j/k", "Scroll"},
			{"r", "Reload"},
			{"q", "Videos"},
			{"?", "More"},
		}
	default:
		style := "List"
		if m.listStyle == prefs.StyleList {
			style = "Cards"
		}
		commands = []cmd{
			{"/", "Search"},
			{"f", "Folder"},
			{"s", library.SortLabel(m.sort)},
			{"v", style},
			{"u", "Upload"},
		}
		if m.session != nil {
			commands = append(commands, cmd{"p", "Mine/Public"}, cmd{"enter", "Edit"})
		}
		if len(m.notices) > 0 {
			commands = append(commands, cmd{"x", "Dismiss"})
		}
		commands = append(commands, cmd{"l", "Logs"}, cmd{"?", "More"})
	}

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	if m.currentView == ViewLibrary && m.folder != library.AllVideos {
		segments = append(segments, bg.Render(truncate(m.folder, 24), styles.InfoText))
	}
	if m.currentView == ViewLibrary && m.search.Value() != "" && !m.searching {
		segments = append(segments, bg.Render("/"+truncate(m.search.Value(), 18), styles.AccentText))
	}

	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}

// renderNotices renders the oldest pending notices, one per line.
func (m Model) renderNotices() string {
	if len(m.notices) == 0 {
		return ""
	}
	styles := m.theme.Styles()
	lines := make([]string, 0, maxNotices)
	for i, n := range m.notices {
		if i == maxNotices {
			break
		}
		style := styles.InfoText
		if strings.Contains(strings.ToLower(n), "failed") {
			style = styles.DangerText
		}
		lines = append(lines, style.Render("• "+truncate(n, max(m.width-4, 10))))
	}
	return strings.Join(lines, "\n")
}

// renderFooter shows the search input or details of the selected entry.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.searching {
		return m.search.View()
	}
	if m.currentView != ViewLibrary {
		return styles.FaintText.Render(truncateMiddle(m.logPath, max(m.width-2, 10)))
	}

	e, ok := m.selectedEntry()
	if !ok {
		return ""
	}
	if e.Placeholder() {
		return styles.MutedText.Render(fmt.Sprintf("%s is processing (%s)", e.Title(), library.Caption(*e.Job)))
	}
	parts := []string{styles.AccentText.Render(m.watchURL(e.VideoID))}
	if p := strings.TrimSpace(e.Video.Path); p != "" {
		parts = append(parts, styles.FaintText.Render(truncateMiddle(p, 40)))
	}
	return strings.Join(parts, "  ")
}
