package ui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/ember/internal/fireshare"
)

// Editor changes videos on the server. Implemented by *fireshare.Client.
type Editor interface {
	UpdateVideoDetails(ctx context.Context, videoID string, update fireshare.DetailsUpdate) error
	SetVideoGame(ctx context.Context, videoID, game string) error
	AddVideoTags(ctx context.Context, videoID string, tags []string) error
	DeleteVideo(ctx context.Context, videoID string) error
}

// videoEdit is the set of changes made in the edit form. Zero fields leave
// the video alone.
type videoEdit struct {
	VideoID string
	Details fireshare.DetailsUpdate
	Game    string
	AddTags []string
}

func (e videoEdit) empty() bool {
	return e.Details.Title == nil && e.Details.Private == nil && e.Game == "" && len(e.AddTags) == 0
}

// apply makes the change locally, ahead of the server.
func (e videoEdit) apply(v *fireshare.Video) {
	if e.Details.Title != nil {
		v.Info.Title = *e.Details.Title
	}
	if e.Details.Private != nil {
		v.Info.Private = *e.Details.Private
	}
	if e.Game != "" {
		v.GameName = e.Game
	}
	if len(e.AddTags) > 0 {
		v.TagNames = append(v.Tags(), e.AddTags...)
	}
}

// save sends the edit, stopping at the first request that fails.
func (e videoEdit) save(ctx context.Context, ed Editor) error {
	if e.Details.Title != nil || e.Details.Private != nil {
		if err := ed.UpdateVideoDetails(ctx, e.VideoID, e.Details); err != nil {
			return err
		}
	}
	if e.Game != "" {
		if err := ed.SetVideoGame(ctx, e.VideoID, e.Game); err != nil {
			return err
		}
	}
	if len(e.AddTags) > 0 {
		return ed.AddVideoTags(ctx, e.VideoID, e.AddTags)
	}
	return nil
}

const (
	editTitle = iota
	editGame
	editTags
	editPrivate
	editFieldCount
)

var editLabels = [editFieldCount]string{"Title", "Game", "Tags", "Private"}

// editForm edits the title, game, privacy and tags of one video.
type editForm struct {
	video   fireshare.Video
	inputs  [editPrivate]textinput.Model
	private bool
	focus   int
	tags    []string
	err     string
}

type editRequestMsg struct{ edit videoEdit }

type editDoneMsg struct {
	edit   videoEdit
	before fireshare.Video
	err    error
}

func newEditForm(v fireshare.Video, games, tags []string) *editForm {
	f := &editForm{video: v, private: v.IsPrivate(), tags: tags}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 48
		f.inputs[i] = ti
	}
	f.inputs[editTitle].SetValue(v.Title())
	f.inputs[editGame].SetValue(v.Game())
	f.inputs[editGame].Placeholder = "Game"
	f.inputs[editGame].ShowSuggestions = true
	f.inputs[editGame].SetSuggestions(games)
	f.inputs[editTags].Placeholder = "tags to add, comma separated"
	f.inputs[editTags].ShowSuggestions = true
	f.inputs[editTitle].Focus()
	return f
}

// Update implements Modal.
func (f *editForm) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Escape):
			return f, nil, true
		case key.Matches(km, keys.Confirm):
			edit, err := f.edit()
			if err != nil {
				f.err = err.Error()
				return f, nil, false
			}
			if edit.empty() {
				return f, nil, true
			}
			return f, func() tea.Msg { return editRequestMsg{edit: edit} }, true
		case key.Matches(km, keys.NextField):
			if f.focus < editPrivate {
				if s := f.inputs[f.focus].CurrentSuggestion(); s != "" {
					f.inputs[f.focus].SetValue(s)
					f.inputs[f.focus].CursorEnd()
				}
			}
			return f, f.setFocus(f.focus + 1), false
		case key.Matches(km, keys.PrevField):
			return f, f.setFocus(f.focus - 1), false
		}
		if f.focus == editPrivate {
			switch km.String() {
			case " ", "left", "right", "h", "l":
				f.private = !f.private
				f.err = ""
			}
			return f, nil, false
		}
	}

	if f.focus == editPrivate {
		return f, nil, false
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	if f.focus == editTags {
		f.inputs[editTags].SetSuggestions(tagSuggestions(f.inputs[editTags].Value(), f.tags, f.video.Tags()))
	}
	f.err = ""
	return f, cmd, false
}

func (f *editForm) setFocus(i int) tea.Cmd {
	if f.focus < editPrivate {
		f.inputs[f.focus].Blur()
	}
	f.focus = (i + editFieldCount) % editFieldCount
	if f.focus == editPrivate {
		return nil
	}
	return f.inputs[f.focus].Focus()
}

// edit compares the form with the video it was opened for.
func (f *editForm) edit() (videoEdit, error) {
	e := videoEdit{VideoID: f.video.VideoID}
	title := strings.TrimSpace(f.inputs[editTitle].Value())
	if title == "" {
		return videoEdit{}, errors.New("title is required")
	}
	if title != f.video.Title() {
		e.Details.Title = &title
	}
	if f.private != f.video.IsPrivate() {
		private := f.private
		e.Details.Private = &private
	}
	if game := strings.TrimSpace(f.inputs[editGame].Value()); game != "" && game != f.video.Game() {
		e.Game = game
	}
	for _, tag := range splitTags(f.inputs[editTags].Value()) {
		if !containsFold(f.video.Tags(), tag) {
			e.AddTags = append(e.AddTags, tag)
		}
	}
	return e, nil
}

// View implements Modal.
func (f *editForm) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Edit " + truncate(f.video.Title(), 40)))
	b.WriteString("\n\n")
	for i := 0; i < editFieldCount; i++ {
		label := styles.MutedText.Width(8).Render(editLabels[i])
		if i == f.focus {
			label = styles.AccentText.Width(8).Render(editLabels[i])
		}
		var field string
		if i == editPrivate {
			field = styles.Text.Render("[ ] public")
			if f.private {
				field = styles.WarningText.Render("[x] private")
			}
		} else {
			field = f.inputs[i].View()
		}
		b.WriteString(label + " " + field)
		b.WriteString("\n")
	}
	if tags := f.video.Tags(); len(tags) > 0 {
		b.WriteString(styles.FaintText.Render("current tags: " + truncate(strings.Join(tags, ", "), 44)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if f.err != "" {
		b.WriteString(styles.DangerText.Render(f.err))
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render("enter save  tab next field  space toggle  esc cancel"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modalBox(theme).Render(b.String()))
}

// confirmDelete asks before a video is deleted.
type confirmDelete struct {
	video fireshare.Video
}

type deleteRequestMsg struct{ video fireshare.Video }

type deleteDoneMsg struct {
	video fireshare.Video
	index int
	err   error
}

// Update implements Modal.
func (c confirmDelete) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case km.String() == "y", key.Matches(km, keys.Confirm):
		v := c.video
		return c, func() tea.Msg { return deleteRequestMsg{video: v} }, true
	case km.String() == "n", key.Matches(km, keys.Escape):
		return c, nil, true
	}
	return c, nil, false
}

// View implements Modal.
func (c confirmDelete) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	body := strings.Join([]string{
		styles.DangerText.Bold(true).Render("Delete " + truncate(c.video.Title(), 40) + "?"),
		"",
		styles.MutedText.Render("The file is removed from the server."),
		"",
		styles.FaintText.Render("y delete  n cancel"),
	}, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modalBox(theme).Render(body))
}

func modalBox(theme Theme) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Width(64)
}

// editTarget returns the selected video when the user may change it.
func (m *Model) editTarget() (fireshare.Video, bool) {
	if m.session == nil {
		m.notify("Log in to edit videos")
		return fireshare.Video{}, false
	}
	if m.editor == nil || m.selected >= len(m.entries) {
		return fireshare.Video{}, false
	}
	entry := m.entries[m.selected]
	if entry.Video == nil {
		m.notify(entry.Title() + " is still processing")
		return fireshare.Video{}, false
	}
	return *entry.Video, true
}

// startEdit shows the edit at once and sends it to the server.
func (m Model) startEdit(e videoEdit) (tea.Model, tea.Cmd) {
	if m.editor == nil {
		return m, nil
	}
	before, ok := m.store.PatchVideo(e.VideoID, e.apply)
	if !ok {
		m.notify("That video is no longer listed")
		return m, nil
	}
	m.reloadStore()
	ed, ctx := m.editor, m.ctx
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, EditTimeout)
		defer cancel()
		return editDoneMsg{edit: e, before: before, err: e.save(ctx, ed)}
	}
}

// finishEdit rolls the video back when the server refused the edit.
func (m *Model) finishEdit(msg editDoneMsg) {
	if msg.err != nil {
		log.Printf("edit video %s failed: %v", msg.edit.VideoID, msg.err)
		before := msg.before
		m.store.PatchVideo(before.VideoID, func(v *fireshare.Video) { *v = before })
		m.notify(fmt.Sprintf("Could not save %s: %s", before.Title(), fireshare.UserMessage(msg.err)))
	}
	if m.feed != nil {
		m.feed.Invalidate()
	}
	m.reloadStore()
}

// startDelete hides the video at once and asks the server to delete it.
func (m Model) startDelete(v fireshare.Video) (tea.Model, tea.Cmd) {
	if m.editor == nil {
		return m, nil
	}
	removed, index, ok := m.store.RemoveVideo(v.VideoID)
	if !ok {
		return m, nil
	}
	m.reloadStore()
	ed, ctx := m.editor, m.ctx
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, EditTimeout)
		defer cancel()
		return deleteDoneMsg{video: removed, index: index, err: ed.DeleteVideo(ctx, removed.VideoID)}
	}
}

// finishDelete puts the video back when the delete failed.
func (m *Model) finishDelete(msg deleteDoneMsg) {
	if msg.err != nil {
		log.Printf("delete video %s failed: %v", msg.video.VideoID, msg.err)
		m.store.RestoreVideo(msg.video, msg.index)
		m.notify(fmt.Sprintf("Could not delete %s: %s", msg.video.Title(), fireshare.UserMessage(msg.err)))
	} else {
		m.notify("Deleted " + msg.video.Title())
	}
	if m.feed != nil {
		m.feed.Invalidate()
	}
	m.reloadStore()
}

// reloadStore picks up a local change to the store without waiting for the
// next tick.
func (m *Model) reloadStore() {
	m.snapshot = m.store.Snapshot()
	m.refreshEntries()
}

// tagSuggestions completes the last tag of a comma separated list. Tags
// already typed or already on the video are not offered again.
func tagSuggestions(value string, known, current []string) []string {
	cut := strings.LastIndex(value, ",") + 1
	rest := value[cut:]
	prefix := value[:cut] + rest[:len(rest)-len(strings.TrimLeft(rest, " "))]
	typed := splitTags(value[:cut])

	out := make([]string, 0, len(known))
	for _, tag := range known {
		if containsFold(typed, tag) || containsFold(current, tag) {
			continue
		}
		out = append(out, prefix+tag)
	}
	return out
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool { return strings.EqualFold(v, s) })
}
