package staging

import "strings"

// CleanStats counts lines at each cleaning step.
type CleanStats struct {
	Raw      int
	NonEmpty int
	Unique   int
}

// SplitLines decodes a blob into lines. A trailing terminator does not produce an
// extra line worth keeping; Clean drops it as empty.
func SplitLines(data []byte) []string {
	return strings.Split(string(data), "\n")
}

// Clean trims every line, drops empty ones and keeps only the first occurrence of each
// distinct line, in first-occurrence order. Clean(Clean(x)) == Clean(x).
func Clean(lines []string) ([]string, CleanStats) {
	stats := CleanStats{Raw: len(lines)}
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		stats.NonEmpty++
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}

	stats.Unique = len(out)
	return out, stats
}
