package library

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/jobs"
)

// Folder list labels.
const (
	AllVideos   = "All Videos"
	GamesHeader = "--- Games ---"
	GamePrefix  = "🎮 "
)

// Entry is one rendered row: either a ready video or a processing placeholder.
type Entry struct {
	VideoID string
	Video   *fireshare.Video
	Job     *jobs.Job
}

// Placeholder reports whether the entry stands in for a video still being
// processed.
func (e Entry) Placeholder() bool { return e.Job != nil }

// Title returns the display title for either kind of entry.
func (e Entry) Title() string {
	switch {
	case e.Video != nil:
		return e.Video.Title()
	case e.Job != nil && strings.TrimSpace(e.Job.Title) != "":
		return e.Job.Title
	default:
		return e.VideoID
	}
}

// Merge combines ready videos and pending jobs into the rendered sequence:
// placeholders first, then ready videos in server order. Jobs whose video is
// already ready are dropped, as are repeated jobs for the same video.
func Merge(ready []fireshare.Video, pending []jobs.Job) []Entry {
	readyIDs := make(map[string]struct{}, len(ready))
	for _, v := range ready {
		readyIDs[v.VideoID] = struct{}{}
	}

	out := make([]Entry, 0, len(ready)+len(pending))
	seen := make(map[string]struct{}, len(pending))
	for i := range pending {
		id := pending[i].VideoID
		if _, ok := readyIDs[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		job := pending[i]
		out = append(out, Entry{VideoID: id, Job: &job})
	}

	emitted := make(map[string]struct{}, len(ready))
	for i := range ready {
		id := ready[i].VideoID
		if _, ok := emitted[id]; ok {
			continue
		}
		emitted[id] = struct{}{}
		v := ready[i]
		out = append(out, Entry{VideoID: id, Video: &v})
	}
	return out
}

// Filter narrows the ready list before merging.
type Filter struct {
	Search string
	Folder string
}

// Build filters all and merges the result with pending. Jobs are matched
// against the unfiltered list so a ready video hidden by the filter never
// reappears as a placeholder.
func Build(all []fireshare.Video, pending []jobs.Job, f Filter) []Entry {
	readyIDs := make(map[string]struct{}, len(all))
	for _, v := range all {
		readyIDs[v.VideoID] = struct{}{}
	}
	stillPending := make([]jobs.Job, 0, len(pending))
	for _, j := range pending {
		if _, ok := readyIDs[j.VideoID]; !ok {
			stillPending = append(stillPending, j)
		}
	}
	visible := Search(InFolder(all, f.Folder), f.Search)
	return Merge(visible, stillPending)
}

// Search keeps videos whose title matches q case-insensitively. q is treated
// as a regular expression and falls back to a literal match when it does not
// compile.
func Search(videos []fireshare.Video, q string) []fireshare.Video {
	q = strings.TrimSpace(q)
	if q == "" {
		return videos
	}
	re, err := regexp.Compile("(?i)" + q)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(q))
	}
	out := make([]fireshare.Video, 0, len(videos))
	for _, v := range videos {
		if re.MatchString(v.Title()) {
			out = append(out, v)
		}
	}
	return out
}

// InFolder keeps videos in folder. AllVideos and "" keep everything; game
// folders ("🎮 Name") match the video's game; anything else matches the first
// directory of the video's path.
func InFolder(videos []fireshare.Video, folder string) []fireshare.Video {
	folder = strings.TrimSpace(folder)
	if folder == "" || folder == AllVideos || folder == GamesHeader {
		return videos
	}
	out := make([]fireshare.Video, 0, len(videos))
	if game, ok := strings.CutPrefix(folder, GamePrefix); ok {
		for _, v := range videos {
			if strings.EqualFold(v.Game(), game) {
				out = append(out, v)
			}
		}
		return out
	}
	for _, v := range videos {
		if TopFolder(v.Path) == folder {
			out = append(out, v)
		}
	}
	return out
}

// TopFolder returns the first directory of a video path, or "" for files at
// the root.
func TopFolder(p string) string {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	dir := path.Dir(p)
	if dir == "." || dir == "" {
		return ""
	}
	first, _, _ := strings.Cut(dir, "/")
	return first
}

// Folders derives the folder picker entries from the video list.
func Folders(videos []fireshare.Video) []string {
	dirs := map[string]struct{}{}
	games := map[string]struct{}{}
	for _, v := range videos {
		if dir := TopFolder(v.Path); dir != "" {
			dirs[dir] = struct{}{}
		}
		if g := v.Game(); g != "" {
			games[g] = struct{}{}
		}
	}

	out := []string{AllVideos}
	out = append(out, sortedKeys(dirs)...)
	if len(games) > 0 {
		out = append(out, GamesHeader)
		for _, g := range sortedKeys(games) {
			out = append(out, GamePrefix+g)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	return keys
}

// Caption is the status line shown on a placeholder.
func Caption(j jobs.Job) string {
	switch j.Status {
	case fireshare.JobQueued:
		return "Queued"
	case fireshare.JobProcessing:
		return fmt.Sprintf("%d%%", j.Progress)
	case fireshare.JobCompleted:
		return "Complete!"
	case fireshare.JobFailed:
		return "Failed"
	case jobs.StatusTimedOut:
		return "Timed out"
	default:
		return "Processing"
	}
}

// SortOption is a server-side ordering for video lists.
type SortOption struct {
	Label string
	Value string
}

// SortOptions lists the orderings the server accepts, default first.
var SortOptions = []SortOption{
	{Label: "Newest", Value: "updated_at desc"},
	{Label: "Oldest", Value: "updated_at asc"},
	{Label: "Most views", Value: "views desc"},
	{Label: "Least views", Value: "views asc"},
}

// NextSort returns the option after current, wrapping around. Unknown values
// start from the default.
func NextSort(current string) SortOption {
	for i, opt := range SortOptions {
		if opt.Value == current {
			return SortOptions[(i+1)%len(SortOptions)]
		}
	}
	return SortOptions[0]
}

// SortLabel returns the label for a sort value.
func SortLabel(value string) string {
	for _, opt := range SortOptions {
		if opt.Value == value {
			return opt.Label
		}
	}
	return SortOptions[0].Label
}
