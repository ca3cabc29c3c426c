package chunker

import "strings"

// DefaultLines is the window size used when callers pass a non-positive size.
const DefaultLines = 512

// Lines splits text into consecutive, non-overlapping windows of at most size
// lines. Windows always end on a line boundary and the last one may be
// shorter. strings.Join(Lines(text, n), "\n") == text for every input.
// Empty text yields no windows.
func Lines(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultLines
	}

	lines := strings.Split(text, "\n")
	windows := make([]string, 0, (len(lines)+size-1)/size)
	for i := 0; i < len(lines); i += size {
		end := min(i+size, len(lines))
		windows = append(windows, strings.Join(lines[i:end], "\n"))
	}
	return windows
}
