package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Level is the severity inferred from a log line.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Line is a parsed line from the standard logger ("2006/01/02 15:04:05 msg").
type Line struct {
	Timestamp string
	Message   string
	Level     Level
}

// Parse splits a log line into timestamp and message and guesses its level.
// Lines without a timestamp (panics, continuation lines) keep the whole text
// as the message.
func Parse(raw string) Line {
	line := Line{Message: raw}
	if len(raw) >= 20 && raw[4] == '/' && raw[7] == '/' && raw[10] == ' ' && raw[13] == ':' && raw[16] == ':' {
		line.Timestamp = raw[:19]
		line.Message = strings.TrimSpace(raw[19:])
	}
	line.Level = classify(line.Message)
	return line
}

// ParseAll parses each line in order.
func ParseAll(raw []string) []Line {
	out := make([]Line, len(raw))
	for i, r := range raw {
		out[i] = Parse(r)
	}
	return out
}

func classify(msg string) Level {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "panic"),
		strings.Contains(lower, "error"),
		strings.Contains(lower, "failed"):
		return LevelError
	case strings.Contains(lower, "timed out"),
		strings.Contains(lower, "retry"),
		strings.Contains(lower, "warn"):
		return LevelWarn
	default:
		return LevelInfo
	}
}
