package protocol

import "strings"

// CleanTraceback strips Python traceback frames from captured stderr so a
// failure message leads with the actual error line instead of interpreter
// noise. Lines between a "Traceback" header and the first non-indented,
// non-continuation line are dropped; everything else passes through.
func CleanTraceback(stderr string) string {
	lines := strings.Split(stderr, "\n")
	out := make([]string, 0, len(lines))
	inTraceback := false
	for _, line := range lines {
		if strings.HasPrefix(line, "Traceback") {
			inTraceback = true
			continue
		}
		if inTraceback {
			// Frame lines and source excerpts are indented; caret markers
			// continue the excerpt.
			if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "^") {
				continue
			}
			inTraceback = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
