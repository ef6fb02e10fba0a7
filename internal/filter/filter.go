// Package filter reduces a raw change list to the subset worth reviewing.
package filter

import (
	"strings"

	"github.com/maxbolgarin/codehook/internal/model"
)

// Apply filters changes down to files whose path ends with one of the
// allowed extensions, drops removed files and entries without a path, and
// back-fills addition/deletion counts from the diff text when the provider
// did not supply them. Order is preserved and the input is not mutated.
// An empty extension list disables extension filtering.
func Apply(changes []model.RawChange, allowedExtensions []string) []model.RawChange {
	filtered := make([]model.RawChange, 0, len(changes))
	for _, change := range changes {
		if change.Status == model.StatusRemoved {
			continue
		}
		if change.Path == "" {
			continue
		}
		if !extensionAllowed(change.Path, allowedExtensions) {
			continue
		}
		if !change.HasStats {
			change.Additions, change.Deletions = CountDiffLines(change.Diff)
			change.HasStats = true
		}
		filtered = append(filtered, change)
	}
	return filtered
}

// extensionAllowed does a case-sensitive suffix match against the allow-list.
func extensionAllowed(path string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, ext := range allowed {
		if ext != "" && strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// CountDiffLines counts added and deleted lines in a unified diff fragment,
// skipping the +++/--- file header lines.
func CountDiffLines(diff string) (additions, deletions int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"):
		case strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}
