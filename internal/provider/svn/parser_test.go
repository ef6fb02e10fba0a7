package svn

import (
	"strings"
	"testing"

	"github.com/maxbolgarin/codehook/internal/model"
)

func TestParseDiffAddedFile(t *testing.T) {
	blob := "Index: a.py\n===\n--- a.py\t(revision 0)\n+++ a.py\t(revision 1)\n+print(1)\n"

	changes := ParseDiff(blob)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}

	c := changes[0]
	if c.Path != "a.py" {
		t.Errorf("path = %q, want a.py", c.Path)
	}
	if c.Status != model.StatusAdded {
		t.Errorf("status = %q, want added", c.Status)
	}
	if c.Additions != 1 || c.Deletions != 0 {
		t.Errorf("counts = %d/%d, want 1/0", c.Additions, c.Deletions)
	}
}

func TestParseDiffServerDialect(t *testing.T) {
	blob := strings.Join([]string{
		"Modified: src/main.py",
		"===================================================================",
		"--- src/main.py\t2025-12-06 10:09:25 UTC (rev 14)",
		"+++ src/main.py\t2025-12-06 10:11:59 UTC (rev 15)",
		"@@ -1,2 +1,2 @@",
		"-old line",
		"+new line",
		"Added: src/util.py",
		"===================================================================",
		"--- src/util.py\t(revision 0)",
		"+++ src/util.py\t2025-12-06 10:11:59 UTC (rev 15)",
		"+def helper():",
		"+    pass",
		"Deleted: src/legacy.py",
		"===================================================================",
		"--- src/legacy.py\t2025-12-06 10:09:25 UTC (rev 14)",
		"+++ /dev/null",
		"-obsolete",
		"",
	}, "\n")

	changes := ParseDiff(blob)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(changes))
	}

	if changes[0].Path != "src/main.py" || changes[0].Status != model.StatusModified {
		t.Errorf("first block: %q/%q", changes[0].Path, changes[0].Status)
	}
	if changes[0].Additions != 1 || changes[0].Deletions != 1 {
		t.Errorf("first block counts = %d/%d, want 1/1", changes[0].Additions, changes[0].Deletions)
	}

	if changes[1].Path != "src/util.py" || changes[1].Status != model.StatusAdded {
		t.Errorf("second block: %q/%q", changes[1].Path, changes[1].Status)
	}
	if changes[1].Additions != 2 || changes[1].Deletions != 0 {
		t.Errorf("second block counts = %d/%d, want 2/0", changes[1].Additions, changes[1].Deletions)
	}

	if changes[2].Path != "src/legacy.py" || changes[2].Status != model.StatusRemoved {
		t.Errorf("third block: %q/%q", changes[2].Path, changes[2].Status)
	}
	if changes[2].Deletions != 1 {
		t.Errorf("third block deletions = %d, want 1", changes[2].Deletions)
	}
}

func TestParseDiffBlockCountMatchesHeaders(t *testing.T) {
	blob := "Index: one.py\n+a\nIndex: two.py\n+b\nModified: three.py\n-c\n"
	changes := ParseDiff(blob)
	if len(changes) != 3 {
		t.Fatalf("expected one change per header, got %d", len(changes))
	}
}

func TestParseDiffNoHeaders(t *testing.T) {
	if changes := ParseDiff("--- a\n+++ b\n+x\n"); len(changes) != 0 {
		t.Fatalf("expected no changes for headerless blob, got %d", len(changes))
	}
	if changes := ParseDiff(""); len(changes) != 0 {
		t.Fatalf("expected no changes for empty blob, got %d", len(changes))
	}
}

func TestParseDiffNormalizesLineEndings(t *testing.T) {
	blob := "Index: a.py\r\n===\r\n--- a.py\t(revision 1)\r\n+++ a.py\t(revision 2)\r\n+x\r\n-y\r\n"
	changes := ParseDiff(blob)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].Additions != 1 || changes[0].Deletions != 1 {
		t.Errorf("counts = %d/%d, want 1/1", changes[0].Additions, changes[0].Deletions)
	}
}

func TestSlugifyURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"svn://svn.example.com/repos/project", "svn_example_com_repos_project"},
		{"https://example.com/svn/app/", "example_com_svn_app"},
		{"svn+ssh://host/repo", "host_repo"},
	}
	for _, tt := range tests {
		if got := SlugifyURL(tt.in); got != tt.want {
			t.Errorf("SlugifyURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
