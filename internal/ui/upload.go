package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/jobs"
)

const (
	fieldPath = iota
	fieldGame
	fieldTags
	fieldCount
)

var uploadLabels = [fieldCount]string{"File", "Game", "Tags"}

// uploadForm collects the file, game and tags for an upload.
type uploadForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
	public bool
	tags   []string
	err    string
}

// uploadRequestMsg is emitted when the form is submitted.
type uploadRequestMsg struct {
	req   fireshare.UploadRequest
	title string
}

// uploadDoneMsg carries the server's answer to an upload.
type uploadDoneMsg struct {
	title  string
	result fireshare.UploadResult
	err    error
}

func newUploadForm(games, tags []string, public bool) *uploadForm {
	f := &uploadForm{public: public, tags: tags}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 512
		ti.Width = 48
		f.inputs[i] = ti
	}
	f.inputs[fieldPath].Placeholder = "~/Videos/clip.mp4"
	f.inputs[fieldGame].Placeholder = "Game (required)"
	f.inputs[fieldGame].ShowSuggestions = true
	f.inputs[fieldGame].SetSuggestions(games)
	f.inputs[fieldTags].Placeholder = "comma separated"
	f.inputs[fieldTags].ShowSuggestions = true
	f.inputs[fieldPath].Focus()
	return f
}

// Update implements Modal.
func (f *uploadForm) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Escape):
			return f, nil, true
		case key.Matches(km, keys.Confirm):
			req, err := f.request()
			if err != nil {
				f.err = err.Error()
				return f, nil, false
			}
			title := clipTitle(req.FilePath)
			return f, func() tea.Msg { return uploadRequestMsg{req: req, title: title} }, true
		case key.Matches(km, keys.NextField):
			if f.focus != fieldPath {
				if s := f.inputs[f.focus].CurrentSuggestion(); s != "" {
					f.inputs[f.focus].SetValue(s)
					f.inputs[f.focus].CursorEnd()
				}
			}
			return f, f.setFocus(f.focus + 1), false
		case key.Matches(km, keys.PrevField):
			return f, f.setFocus(f.focus - 1), false
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	if f.focus == fieldTags {
		f.inputs[fieldTags].SetSuggestions(tagSuggestions(f.inputs[fieldTags].Value(), f.tags, nil))
	}
	f.err = ""
	return f, cmd, false
}

func (f *uploadForm) setFocus(i int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (i + fieldCount) % fieldCount
	return f.inputs[f.focus].Focus()
}

// request validates the form.
func (f *uploadForm) request() (fireshare.UploadRequest, error) {
	path := strings.TrimSpace(f.inputs[fieldPath].Value())
	if path == "" {
		return fireshare.UploadRequest{}, errors.New("choose a file to upload")
	}
	path = expandHome(path)
	info, err := os.Stat(path)
	if err != nil {
		return fireshare.UploadRequest{}, fmt.Errorf("cannot read %s", path)
	}
	if info.IsDir() {
		return fireshare.UploadRequest{}, fmt.Errorf("%s is a directory", path)
	}
	game := strings.TrimSpace(f.inputs[fieldGame].Value())
	if game == "" {
		return fireshare.UploadRequest{}, errors.New("game is required")
	}
	return fireshare.UploadRequest{
		FilePath: path,
		Game:     game,
		Tags:     splitTags(f.inputs[fieldTags].Value()),
		Public:   f.public,
	}, nil
}

// View implements Modal.
func (f *uploadForm) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	labelStyle := styles.MutedText.Width(6)

	title := "Upload video"
	if f.public {
		title = "Upload video (public)"
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(title))
	b.WriteString("\n\n")
	for i := range f.inputs {
		label := labelStyle.Render(uploadLabels[i])
		if i == f.focus {
			label = styles.AccentText.Width(6).Render(uploadLabels[i])
		}
		b.WriteString(label + " " + f.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if f.err != "" {
		b.WriteString(styles.DangerText.Render(f.err))
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render("enter upload  tab next field  esc cancel"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modalBox(theme).Render(b.String()))
}

// uploadCmd sends req and reports the outcome as an uploadDoneMsg.
func uploadCmd(ctx context.Context, up Uploader, req fireshare.UploadRequest, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, UploadTimeout)
		defer cancel()
		result, err := up.Upload(ctx, req)
		return uploadDoneMsg{title: title, result: result, err: err}
	}
}

// handleUploadDone registers the processing job or refreshes the list.
func (m *Model) handleUploadDone(msg uploadDoneMsg) {
	if msg.err != nil {
		m.notify("Upload failed: " + fireshare.UserMessage(msg.err))
		return
	}
	if !msg.result.Processing() {
		m.notify(fmt.Sprintf("Uploaded %s", msg.title))
		if m.feed != nil {
			m.feed.Invalidate()
		}
		return
	}
	if m.jobs == nil {
		return
	}
	job := jobs.Job{
		JobID:   msg.result.JobID,
		VideoID: msg.result.VideoID,
		Title:   msg.title,
	}
	if !m.jobs.Register(m.ctx, job) {
		m.notify(fmt.Sprintf("%s is already processing", msg.title))
		return
	}
	m.pending = m.jobs.Jobs()
	m.refreshEntries()
}

// clipTitle is the title the server gives a new upload: its file name.
func clipTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
