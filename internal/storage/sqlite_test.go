package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "data.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndListMergeReviews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []MergeReviewRecord{
		{ProjectName: "alpha", Author: "alice", SourceBranch: "feat", TargetBranch: "main", UpdatedAt: 100, Score: 85, LastCommitID: "c1"},
		{ProjectName: "alpha", Author: "bob", SourceBranch: "fix", TargetBranch: "main", UpdatedAt: 300, Score: 70, LastCommitID: "c2"},
		{ProjectName: "beta", Author: "alice", SourceBranch: "feat", TargetBranch: "dev", UpdatedAt: 200, Score: 90, LastCommitID: "c3"},
	}
	for i := range records {
		if err := s.InsertMergeReview(ctx, &records[i]); err != nil {
			t.Fatalf("InsertMergeReview: %v", err)
		}
	}

	got, err := s.ListMergeReviews(ctx, Query{})
	if err != nil {
		t.Fatalf("ListMergeReviews: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0].UpdatedAt != 300 || got[1].UpdatedAt != 200 || got[2].UpdatedAt != 100 {
		t.Errorf("rows not ordered newest first: %d, %d, %d", got[0].UpdatedAt, got[1].UpdatedAt, got[2].UpdatedAt)
	}

	got, err = s.ListMergeReviews(ctx, Query{Authors: []string{"alice"}, Projects: []string{"alpha"}})
	if err != nil {
		t.Fatalf("ListMergeReviews filtered: %v", err)
	}
	if len(got) != 1 || got[0].LastCommitID != "c1" {
		t.Errorf("author+project filter returned wrong rows: %+v", got)
	}

	got, err = s.ListMergeReviews(ctx, Query{UpdatedAfter: 150, UpdatedBefore: 250})
	if err != nil {
		t.Fatalf("ListMergeReviews range: %v", err)
	}
	if len(got) != 1 || got[0].UpdatedAt != 200 {
		t.Errorf("time range filter returned wrong rows: %+v", got)
	}
}

func TestHasMergeRevision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := MergeReviewRecord{
		ProjectName:  "alpha",
		SourceBranch: "feat",
		TargetBranch: "main",
		LastCommitID: "abc123",
	}
	if err := s.InsertMergeReview(ctx, &rec); err != nil {
		t.Fatalf("InsertMergeReview: %v", err)
	}

	if !s.HasMergeRevision(ctx, "alpha", "feat", "main", "abc123") {
		t.Error("expected exact match to be found")
	}

	for name, args := range map[string][4]string{
		"different project": {"beta", "feat", "main", "abc123"},
		"different source":  {"alpha", "other", "main", "abc123"},
		"different target":  {"alpha", "feat", "dev", "abc123"},
		"different commit":  {"alpha", "feat", "main", "def456"},
	} {
		if s.HasMergeRevision(ctx, args[0], args[1], args[2], args[3]) {
			t.Errorf("%s: expected no match", name)
		}
	}
}

func TestHasMergeRevisionEmptyCommitID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := MergeReviewRecord{ProjectName: "alpha", SourceBranch: "feat", TargetBranch: "main"}
	if err := s.InsertMergeReview(ctx, &rec); err != nil {
		t.Fatalf("InsertMergeReview: %v", err)
	}

	if !s.HasMergeRevision(ctx, "alpha", "feat", "main", "") {
		t.Error("empty commit id must match an empty stored value")
	}
	if s.HasMergeRevision(ctx, "alpha", "feat", "main", "abc") {
		t.Error("non-empty commit id must not match an empty stored value")
	}
}

func TestInsertAndGetPushReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := PushReviewRecord{
		ProjectName:    "alpha",
		Author:         "alice",
		Branch:         "main",
		UpdatedAt:      42,
		CommitMessages: "first; second",
		Score:          75,
		ReviewResult:   "looks good",
		Additions:      10,
		Deletions:      3,
	}
	if err := s.InsertPushReview(ctx, &rec); err != nil {
		t.Fatalf("InsertPushReview: %v", err)
	}

	list, err := s.ListPushReviews(ctx, Query{})
	if err != nil {
		t.Fatalf("ListPushReviews: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 row, got %d", len(list))
	}

	got, err := s.GetPushReview(ctx, list[0].ID)
	if err != nil {
		t.Fatalf("GetPushReview: %v", err)
	}
	if got.CommitMessages != rec.CommitMessages || got.Score != rec.Score ||
		got.Additions != rec.Additions || got.Deletions != rec.Deletions {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestMigrateLegacyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = db.Exec(`
        CREATE TABLE mr_review_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            project_name TEXT,
            author TEXT,
            source_branch TEXT,
            target_branch TEXT,
            updated_at INTEGER,
            commit_messages TEXT,
            score INTEGER,
            url TEXT,
            review_result TEXT
        );
        INSERT INTO mr_review_log (project_name, author, source_branch, target_branch, updated_at)
        VALUES ('old', 'alice', 'feat', 'main', 1);
    `)
	if err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("New on legacy db: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	got, err := s.ListMergeReviews(ctx, Query{})
	if err != nil {
		t.Fatalf("ListMergeReviews: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected legacy row to survive, got %d rows", len(got))
	}
	if got[0].Additions != 0 || got[0].Deletions != 0 || got[0].LastCommitID != "" {
		t.Errorf("migrated columns should default to zero values: %+v", got[0])
	}

	rec := MergeReviewRecord{ProjectName: "new", Additions: 5, Deletions: 2, LastCommitID: "head"}
	if err := s.InsertMergeReview(ctx, &rec); err != nil {
		t.Fatalf("insert after migration: %v", err)
	}
}
