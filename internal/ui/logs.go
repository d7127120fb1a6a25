package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/ember/internal/logtail"
)

// logLinesMsg carries a fresh read of the log file.
type logLinesMsg struct {
	lines []logtail.Line
	err   error
}

func loadLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return logLinesMsg{}
		}
		raw, err := logtail.Read(path, LogTailLines)
		return logLinesMsg{lines: logtail.ParseAll(raw), err: err}
	}
}

func (m *Model) handleLogLines(msg logLinesMsg) {
	if msg.err != nil {
		m.logErr = msg.err.Error()
		return
	}
	m.logErr = ""
	m.logLines = msg.lines
	m.logViewport.SetContent(m.renderLogContent())
	if m.logFollow {
		m.logViewport.GotoBottom()
	}
}

func (m *Model) resizeLogViewport() {
	m.logViewport.Width = max(m.width-2, 1)
	m.logViewport.Height = max(m.height-4, 1)
	if len(m.logLines) > 0 {
		m.logViewport.SetContent(m.renderLogContent())
	}
}

// handleLogsKey processes keyboard input for the logs view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logFollow = !m.logFollow
		if m.logFollow {
			m.logViewport.GotoBottom()
		}
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.logFollow = false
		m.logViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.PageUp):
		m.logFollow = false
	}

	var cmd tea.Cmd
	m.logViewport, cmd = m.logViewport.Update(msg)
	return m, cmd
}

// renderLogs renders the log view.
func (m Model) renderLogs(height int) string {
	styles := m.theme.Styles()
	if m.logErr != "" {
		return styles.DangerText.Render("Could not read log: " + m.logErr)
	}
	if len(m.logLines) == 0 {
		return styles.MutedText.Render("Nothing logged yet.")
	}
	vp := m.logViewport
	vp.Height = max(height, 1)
	return vp.View()
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	var b strings.Builder
	for i, line := range m.logLines {
		if i > 0 {
			b.WriteString("\n")
		}
		if line.Timestamp != "" {
			b.WriteString(styles.FaintText.Render(line.Timestamp))
			b.WriteString(" ")
		}
		b.WriteString(m.levelStyle(line.Level).Render(line.Message))
	}
	return b.String()
}

func (m Model) levelStyle(level logtail.Level) lipgloss.Style {
	styles := m.theme.Styles()
	switch level {
	case logtail.LevelError:
		return styles.DangerText
	case logtail.LevelWarn:
		return styles.WarningText
	default:
		return styles.Text
	}
}
