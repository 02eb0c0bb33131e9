package definitions

import "strings"

// maxDepth is the platform's hard limit on command nesting: command,
// subcommand and subcommand group.
const maxDepth = 3

// SanitizeLabel splits a space-delimited command label into at most three
// path segments. Each segment is lower-cased, internal whitespace becomes "_"
// and characters outside the platform's allowed alphabet are stripped.
// Segments beyond the third are merged into the third with "_".
func SanitizeLabel(label string) []string {
	fields := strings.Fields(label)
	if len(fields) > maxDepth {
		merged := strings.Join(fields[maxDepth-1:], "_")
		fields = append(fields[:maxDepth-1], merged)
	}

	path := make([]string, 0, len(fields))
	for _, field := range fields {
		if s := sanitizeSegment(field); s != "" {
			path = append(path, s)
		}
	}
	return path
}

func sanitizeSegment(segment string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		}
	}
	return b.String()
}
