package library

import (
	"reflect"
	"testing"

	"github.com/five82/ember/internal/fireshare"
	"github.com/five82/ember/internal/jobs"
)

func video(id, title, path string) fireshare.Video {
	return fireshare.Video{VideoID: id, Path: path, Available: true, Info: fireshare.VideoInfo{Title: title}}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.VideoID
	}
	return out
}

func assertUnique(t *testing.T, entries []Entry) {
	t.Helper()
	seen := map[string]bool{}
	for _, e := range entries {
		if seen[e.VideoID] {
			t.Fatalf("video %q rendered twice in %v", e.VideoID, ids(entries))
		}
		seen[e.VideoID] = true
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name         string
		ready        []fireshare.Video
		pending      []jobs.Job
		want         []string
		placeholders int
	}{
		{
			name: "empty",
			want: []string{},
		},
		{
			name:         "placeholders first then ready in server order",
			ready:        []fireshare.Video{video("b", "B", ""), video("a", "A", "")},
			pending:      []jobs.Job{{JobID: "j1", VideoID: "p1"}},
			want:         []string{"p1", "b", "a"},
			placeholders: 1,
		},
		{
			name:    "job for ready video is dropped",
			ready:   []fireshare.Video{video("v1", "Clip", "")},
			pending: []jobs.Job{{JobID: "j1", VideoID: "v1"}},
			want:    []string{"v1"},
		},
		{
			name:         "duplicate jobs collapse",
			pending:      []jobs.Job{{JobID: "j1", VideoID: "v1"}, {JobID: "j2", VideoID: "v1"}, {JobID: "j3", VideoID: "v2"}},
			want:         []string{"v1", "v2"},
			placeholders: 2,
		},
		{
			name:  "duplicate ready items collapse",
			ready: []fireshare.Video{video("v1", "A", ""), video("v1", "A", "")},
			want:  []string{"v1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.ready, tt.pending)
			assertUnique(t, got)
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Fatalf("Merge ids = %v, want %v", ids(got), tt.want)
			}
			placeholders := 0
			for _, e := range got {
				if e.Placeholder() {
					placeholders++
				}
			}
			if placeholders != tt.placeholders {
				t.Fatalf("placeholders = %d, want %d", placeholders, tt.placeholders)
			}
		})
	}
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	ready := []fireshare.Video{video("v1", "Clip", "")}
	pending := []jobs.Job{{JobID: "j2", VideoID: "v2", Title: "Pending"}}
	got := Merge(ready, pending)

	got[0].Job.Title = "changed"
	got[1].Video.Info.Title = "changed"
	if pending[0].Title != "Pending" || ready[0].Info.Title != "Clip" {
		t.Fatalf("Merge mutated its inputs")
	}
}

func TestUploadToReadyTransition(t *testing.T) {
	existing := []fireshare.Video{video("v0", "Old", "")}
	job := jobs.Job{JobID: "j1", VideoID: "v1", Title: "Clip", Status: fireshare.JobProcessing, Progress: 40}

	// After upload: placeholder for v1 ahead of the existing list.
	step1 := Build(existing, []jobs.Job{job}, Filter{})
	assertUnique(t, step1)
	if !reflect.DeepEqual(ids(step1), []string{"v1", "v0"}) || !step1[0].Placeholder() {
		t.Fatalf("after upload = %v, want placeholder v1 then v0", ids(step1))
	}
	if got := Caption(*step1[0].Job); got != "40%" {
		t.Fatalf("caption = %q, want 40%%", got)
	}

	// Completed but the list has not refetched yet: still a placeholder.
	job.Status, job.Progress = fireshare.JobCompleted, 100
	step2 := Build(existing, []jobs.Job{job}, Filter{})
	assertUnique(t, step2)
	if !step2[0].Placeholder() || Caption(*step2[0].Job) != "Complete!" {
		t.Fatalf("after completion = %#v", step2[0])
	}

	// Refetched list contains v1 while the job is still in its grace period.
	refreshed := append([]fireshare.Video{video("v1", "Clip", "")}, existing...)
	step3 := Build(refreshed, []jobs.Job{job}, Filter{})
	assertUnique(t, step3)
	if !reflect.DeepEqual(ids(step3), []string{"v1", "v0"}) || step3[0].Placeholder() {
		t.Fatalf("after refetch = %v, want ready v1 then v0", ids(step3))
	}

	// Grace period over.
	step4 := Build(refreshed, nil, Filter{})
	if !reflect.DeepEqual(ids(step3), ids(step4)) {
		t.Fatalf("after removal = %v, want %v", ids(step4), ids(step3))
	}
}

func TestBuild_FilteredReadyVideoIsNotAPlaceholder(t *testing.T) {
	all := []fireshare.Video{video("v1", "Epic Win", "GameA/a.mp4"), video("v2", "Funny Fail", "GameB/b.mp4")}
	pending := []jobs.Job{{JobID: "j2", VideoID: "v2"}, {JobID: "j3", VideoID: "v3"}}
	got := Build(all, pending, Filter{Folder: "GameA"})
	if !reflect.DeepEqual(ids(got), []string{"v3", "v1"}) {
		t.Fatalf("Build ids = %v, want [v3 v1]", ids(got))
	}
}

func TestInFolder(t *testing.T) {
	videos := []fireshare.Video{
		video("1", "clip1", "GameA/clip1.mp4"),
		video("2", "clip2", "GameB/clip2.mp4"),
		video("3", "root", "root.mp4"),
	}
	videos[1].GameName = "Halo"

	tests := []struct {
		folder string
		want   []string
	}{
		{"GameA", []string{"clip1"}},
		{"GameB", []string{"clip2"}},
		{AllVideos, []string{"clip1", "clip2", "root"}},
		{"", []string{"clip1", "clip2", "root"}},
		{GamePrefix + "halo", []string{"clip2"}},
		{"Missing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.folder, func(t *testing.T) {
			got := InFolder(videos, tt.folder)
			titles := make([]string, len(got))
			for i, v := range got {
				titles[i] = v.Title()
			}
			if !reflect.DeepEqual(titles, tt.want) {
				t.Fatalf("InFolder(%q) = %v, want %v", tt.folder, titles, tt.want)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	videos := []fireshare.Video{video("1", "Epic Win", ""), video("2", "Funny Fail", "")}

	tests := []struct {
		q    string
		want []string
	}{
		{"win", []string{"Epic Win"}},
		{"WIN", []string{"Epic Win"}},
		{"", []string{"Epic Win", "Funny Fail"}},
		{"^f", []string{"Funny Fail"}},
		{"(", []string{}},
		{"ep.c", []string{"Epic Win"}},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			got := Search(videos, tt.q)
			titles := make([]string, len(got))
			for i, v := range got {
				titles[i] = v.Title()
			}
			if !reflect.DeepEqual(titles, tt.want) {
				t.Fatalf("Search(%q) = %v, want %v", tt.q, titles, tt.want)
			}
		})
	}
}

func TestFolders(t *testing.T) {
	videos := []fireshare.Video{
		video("1", "", "zeta/a.mp4"),
		video("2", "", "Alpha/b/c.mp4"),
		video("3", "", "top.mp4"),
		video("4", "", "zeta/d.mp4"),
	}
	if got, want := Folders(videos), []string{AllVideos, "Alpha", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Folders = %v, want %v", got, want)
	}

	videos[0].GameName = "Halo"
	videos[2].GameName = "Apex"
	want := []string{AllVideos, "Alpha", "zeta", GamesHeader, GamePrefix + "Apex", GamePrefix + "Halo"}
	if got := Folders(videos); !reflect.DeepEqual(got, want) {
		t.Fatalf("Folders with games = %v, want %v", got, want)
	}
}

func TestCaption(t *testing.T) {
	tests := []struct {
		job  jobs.Job
		want string
	}{
		{jobs.Job{Status: fireshare.JobQueued}, "Queued"},
		{jobs.Job{Status: fireshare.JobProcessing, Progress: 72}, "72%"},
		{jobs.Job{Status: fireshare.JobCompleted}, "Complete!"},
		{jobs.Job{Status: fireshare.JobFailed}, "Failed"},
		{jobs.Job{Status: jobs.StatusTimedOut}, "Timed out"},
		{jobs.Job{}, "Processing"},
	}
	for _, tt := range tests {
		if got := Caption(tt.job); got != tt.want {
			t.Errorf("Caption(%q) = %q, want %q", tt.job.Status, got, tt.want)
		}
	}
}

func TestNextSort(t *testing.T) {
	if got := NextSort("updated_at desc"); got.Value != "updated_at asc" {
		t.Fatalf("NextSort = %#v", got)
	}
	if got := NextSort(SortOptions[len(SortOptions)-1].Value); got.Value != SortOptions[0].Value {
		t.Fatalf("NextSort should wrap, got %#v", got)
	}
	if got := NextSort("bogus"); got.Value != SortOptions[0].Value {
		t.Fatalf("NextSort(bogus) = %#v", got)
	}
	if got := SortLabel("views desc"); got != "Most views" {
		t.Fatalf("SortLabel = %q", got)
	}
}
