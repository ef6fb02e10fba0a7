package svn

import (
	"strings"

	"github.com/maxbolgarin/codehook/internal/model"
)

// Header prefixes of the two SVN diff dialects. "Index:" is emitted by a
// client-side `svn diff`, the status-carrying prefixes by a server-side
// `svnlook diff`.
const (
	indexPrefix    = "Index: "
	modifiedPrefix = "Modified: "
	addedPrefix    = "Added: "
	deletedPrefix  = "Deleted: "
)

// ParseDiff parses an SVN unified-diff blob into one RawChange per file
// block. A block starts at a header line and accumulates every following
// line until the next header or end of input. A blob without header lines
// yields no changes.
func ParseDiff(diffText string) []model.RawChange {
	// Normalize Windows and legacy Mac line endings before scanning.
	diffText = strings.ReplaceAll(diffText, "\r\n", "\n")
	diffText = strings.ReplaceAll(diffText, "\r", "\n")

	var (
		changes []model.RawChange
		block   []string
		path    string
		status  model.ChangeStatus
		inFile  bool
	)

	flush := func() {
		if !inFile || path == "" {
			return
		}
		if status == "" {
			status = model.StatusModified
		}
		change := model.RawChange{
			Path:     path,
			Status:   status,
			Diff:     strings.Join(block, "\n"),
			HasStats: true,
		}
		for _, l := range block {
			switch {
			case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
			case strings.HasPrefix(l, "+"):
				change.Additions++
			case strings.HasPrefix(l, "-"):
				change.Deletions++
			}
		}
		changes = append(changes, change)
	}

	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, indexPrefix):
			flush()
			path = strings.TrimSpace(line[len(indexPrefix):])
			status = ""
			block = []string{line}
			inFile = true

		case strings.HasPrefix(line, modifiedPrefix):
			flush()
			path = strings.TrimSpace(line[len(modifiedPrefix):])
			status = model.StatusModified
			block = []string{line}
			inFile = true

		case strings.HasPrefix(line, addedPrefix):
			flush()
			path = strings.TrimSpace(line[len(addedPrefix):])
			status = model.StatusAdded
			block = []string{line}
			inFile = true

		case strings.HasPrefix(line, deletedPrefix):
			flush()
			path = strings.TrimSpace(line[len(deletedPrefix):])
			status = model.StatusRemoved
			block = []string{line}
			inFile = true

		case strings.HasPrefix(line, "--- "):
			// Nothing existed before this revision: the file is new.
			if strings.Contains(line, "/dev/null") || strings.Contains(line, "(revision 0)") {
				status = model.StatusAdded
			} else if inFile {
				status = model.StatusModified
			}
			if inFile {
				block = append(block, line)
			}

		case strings.HasPrefix(line, "+++ "):
			if strings.Contains(line, "/dev/null") {
				status = model.StatusRemoved
			} else if status != model.StatusAdded {
				status = model.StatusModified
			}
			if inFile {
				block = append(block, line)
			}

		default:
			if inFile {
				block = append(block, line)
			}
		}
	}
	flush()

	return changes
}
