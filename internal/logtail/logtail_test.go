package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	// Create a temporary log file
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	// Write 10 lines of content
	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "missing.log"), 10)
	if err != nil || lines != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", lines, err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Line
	}{
		{
			name:  "empty line",
			input: "",
			want:  Line{},
		},
		{
			name:  "info",
			input: "2026/10/19 21:01:05 login ok as admin",
			want:  Line{Timestamp: "2026/10/19 21:01:05", Message: "login ok as admin", Level: LevelInfo},
		},
		{
			name:  "poll failure",
			input: "2026/10/19 21:01:05 processing status j1 failed (retry in 6s): connection refused",
			want:  Line{Timestamp: "2026/10/19 21:01:05", Message: "processing status j1 failed (retry in 6s): connection refused", Level: LevelError},
		},
		{
			name:  "timeout",
			input: "2026/10/19 21:01:05 processing job j1 for video v1 ended as timed_out: processing timed out",
			want:  Line{Timestamp: "2026/10/19 21:01:05", Message: "processing job j1 for video v1 ended as timed_out: processing timed out", Level: LevelWarn},
		},
		{
			name:  "continuation",
			input: "goroutine 1 [running]:",
			want:  Line{Message: "goroutine 1 [running]:", Level: LevelInfo},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.input); got != tt.want {
				t.Errorf("Parse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseAll(t *testing.T) {
	got := ParseAll([]string{"2026/10/19 21:01:05 a", "panic: boom"})
	if len(got) != 2 || got[0].Message != "a" || got[1].Level != LevelError {
		t.Fatalf("ParseAll = %#v", got)
	}
	if LevelWarn.String() != "WARN" || LevelError.String() != "ERROR" || LevelInfo.String() != "INFO" {
		t.Fatalf("Level strings wrong")
	}
}
