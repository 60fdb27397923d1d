package search

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// VideoLine is one matching line of the video catalog. Number is 1-based.
type VideoLine struct {
	Number int
	Text   string
}

// SearchVideos returns the lines of the flat catalog at path that contain
// keyword, case-insensitively. A missing catalog yields no lines.
func SearchVideos(path, keyword string) ([]VideoLine, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open video catalog: %w", err)
	}
	defer f.Close()

	kw := lower(keyword)
	var out []VideoLine

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024) // 1MB max line length
	n := 0
	for scanner.Scan() {
		n++
		line := strings.ToValidUTF8(scanner.Text(), "")
		if strings.Contains(lower(line), kw) {
			out = append(out, VideoLine{Number: n, Text: strings.TrimSpace(line)})
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read video catalog: %w", err)
	}
	return out, nil
}
