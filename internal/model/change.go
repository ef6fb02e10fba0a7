package model

import (
	"strings"
	"time"
)

// ChangeStatus describes what happened to a file in one change-set.
type ChangeStatus string

const (
	StatusAdded    ChangeStatus = "added"
	StatusModified ChangeStatus = "modified"
	StatusRemoved  ChangeStatus = "removed"
	StatusRenamed  ChangeStatus = "renamed"
)

// RawChange is one file's change as reported by (or derived for) a provider.
// Additions and Deletions are meaningful only when HasStats is true:
// providers either supply both counters or neither, and the filter
// back-fills them from Diff when absent.
type RawChange struct {
	Path      string       `json:"path"`
	Status    ChangeStatus `json:"status"`
	Diff      string       `json:"diff"`
	Additions int          `json:"additions"`
	Deletions int          `json:"deletions"`
	HasStats  bool         `json:"-"`
}

// CommitInfo is the provider-agnostic commit metadata used for review.
// For SVN the ID is the decimal revision number as a string.
type CommitInfo struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
}

// JoinCommitMessages builds the commit-summary text handed to the review
// engine and persisted alongside the outcome.
func JoinCommitMessages(commits []CommitInfo) string {
	parts := make([]string, 0, len(commits))
	for _, c := range commits {
		parts = append(parts, strings.TrimSpace(c.Message))
	}
	return strings.Join(parts, ";")
}
