package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"

	_ "modernc.org/sqlite"
)

const (
	initMaxRetries = 3
	initRetryDelay = time.Second
)

// Store persists review logs in SQLite. Reads and writes are fail-soft:
// the pipeline must not stall on a busy database.
type Store struct {
	db  *sql.DB
	log logze.Logger
}

// New opens (or creates) the database at cfg.Path, enables WAL mode and
// applies the schema. Initialization retries with exponential backoff
// when another writer holds the lock.
func New(cfg Config) (*Store, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errm.Wrap(err, "create data dir")
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, errm.Wrap(err, "open sqlite")
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, errm.Wrap(err, "enable wal")
	}

	s := &Store{db: db, log: logze.With("module", "storage")}

	delay := initRetryDelay
	for attempt := 1; ; attempt++ {
		err = migrate(db)
		if err == nil {
			break
		}
		if !isLocked(err) || attempt == initMaxRetries {
			db.Close()
			return nil, errm.Wrap(err, "migrate")
		}
		s.log.Warn("database is locked, retrying migration", "attempt", attempt, "delay", delay)
		time.Sleep(delay)
		delay *= 2
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isLocked(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "locked")
}

func migrate(db *sql.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS mr_review_log (
        id              INTEGER PRIMARY KEY AUTOINCREMENT,
        project_name    TEXT,
        author          TEXT,
        source_branch   TEXT,
        target_branch   TEXT,
        updated_at      INTEGER,
        commit_messages TEXT,
        score           INTEGER,
        url             TEXT,
        review_result   TEXT,
        additions       INTEGER DEFAULT 0,
        deletions       INTEGER DEFAULT 0,
        last_commit_id  TEXT DEFAULT ''
    );
    CREATE TABLE IF NOT EXISTS push_review_log (
        id              INTEGER PRIMARY KEY AUTOINCREMENT,
        project_name    TEXT,
        author          TEXT,
        branch          TEXT,
        updated_at      INTEGER,
        commit_messages TEXT,
        score           INTEGER,
        review_result   TEXT,
        additions       INTEGER DEFAULT 0,
        deletions       INTEGER DEFAULT 0
    );
    `
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	// Legacy databases predate the counter and last_commit_id columns.
	for _, table := range []string{"mr_review_log", "push_review_log"} {
		for _, column := range []string{"additions", "deletions"} {
			if err := addColumnIfMissing(db, table, column, "INTEGER DEFAULT 0"); err != nil {
				return err
			}
		}
	}
	if err := addColumnIfMissing(db, "mr_review_log", "last_commit_id", "TEXT DEFAULT ''"); err != nil {
		return err
	}

	_, err := db.Exec(`
    CREATE INDEX IF NOT EXISTS idx_mr_review_log_updated_at ON mr_review_log (updated_at);
    CREATE INDEX IF NOT EXISTS idx_push_review_log_updated_at ON push_review_log (updated_at);
    `)
	return err
}

func addColumnIfMissing(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return err
	}
	defer rows.Close()

	exists := false
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return err
		}
		if name == column {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + definition)
	return err
}

// InsertMergeReview appends one merge request review log row.
func (s *Store) InsertMergeReview(ctx context.Context, rec *MergeReviewRecord) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO mr_review_log (project_name, author, source_branch, target_branch,
            updated_at, commit_messages, score, url, review_result, additions, deletions, last_commit_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, rec.ProjectName, rec.Author, rec.SourceBranch, rec.TargetBranch,
		rec.UpdatedAt, rec.CommitMessages, rec.Score, rec.URL, rec.ReviewResult,
		rec.Additions, rec.Deletions, rec.LastCommitID)
	if err != nil {
		return errm.Wrap(err, "insert merge review")
	}
	return nil
}

// InsertPushReview appends one push review log row.
func (s *Store) InsertPushReview(ctx context.Context, rec *PushReviewRecord) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO push_review_log (project_name, author, branch, updated_at,
            commit_messages, score, review_result, additions, deletions)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, rec.ProjectName, rec.Author, rec.Branch, rec.UpdatedAt,
		rec.CommitMessages, rec.Score, rec.ReviewResult, rec.Additions, rec.Deletions)
	if err != nil {
		return errm.Wrap(err, "insert push review")
	}
	return nil
}

// HasMergeRevision reports whether a merge review for exactly this
// project, branch pair and head commit was already recorded. Storage
// errors degrade to false so a flaky database never suppresses reviews.
func (s *Store) HasMergeRevision(ctx context.Context, project, sourceBranch, targetBranch, lastCommitID string) bool {
	var count int
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM mr_review_log
        WHERE project_name = ? AND source_branch = ? AND target_branch = ? AND last_commit_id = ?
    `, project, sourceBranch, targetBranch, lastCommitID).Scan(&count)
	if err != nil {
		s.log.Err(err, "check merge revision")
		return false
	}
	return count > 0
}

// ListMergeReviews returns merge review rows matching the query, newest first.
func (s *Store) ListMergeReviews(ctx context.Context, q Query) ([]MergeReviewRecord, error) {
	query, params := buildListQuery(`
        SELECT id, project_name, author, source_branch, target_branch, updated_at,
               commit_messages, score, url, review_result, additions, deletions, last_commit_id
        FROM mr_review_log
        WHERE 1=1`, q)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, errm.Wrap(err, "list merge reviews")
	}
	defer rows.Close()

	var out []MergeReviewRecord
	for rows.Next() {
		var rec MergeReviewRecord
		if err := rows.Scan(&rec.ID, &rec.ProjectName, &rec.Author, &rec.SourceBranch,
			&rec.TargetBranch, &rec.UpdatedAt, &rec.CommitMessages, &rec.Score,
			&rec.URL, &rec.ReviewResult, &rec.Additions, &rec.Deletions, &rec.LastCommitID); err != nil {
			return nil, errm.Wrap(err, "scan merge review")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPushReviews returns push review rows matching the query, newest first.
func (s *Store) ListPushReviews(ctx context.Context, q Query) ([]PushReviewRecord, error) {
	query, params := buildListQuery(`
        SELECT id, project_name, author, branch, updated_at,
               commit_messages, score, review_result, additions, deletions
        FROM push_review_log
        WHERE 1=1`, q)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, errm.Wrap(err, "list push reviews")
	}
	defer rows.Close()

	var out []PushReviewRecord
	for rows.Next() {
		var rec PushReviewRecord
		if err := rows.Scan(&rec.ID, &rec.ProjectName, &rec.Author, &rec.Branch,
			&rec.UpdatedAt, &rec.CommitMessages, &rec.Score, &rec.ReviewResult,
			&rec.Additions, &rec.Deletions); err != nil {
			return nil, errm.Wrap(err, "scan push review")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetMergeReview fetches one merge review row by id.
func (s *Store) GetMergeReview(ctx context.Context, id int64) (*MergeReviewRecord, error) {
	var rec MergeReviewRecord
	err := s.db.QueryRowContext(ctx, `
        SELECT id, project_name, author, source_branch, target_branch, updated_at,
               commit_messages, score, url, review_result, additions, deletions, last_commit_id
        FROM mr_review_log WHERE id = ?
    `, id).Scan(&rec.ID, &rec.ProjectName, &rec.Author, &rec.SourceBranch,
		&rec.TargetBranch, &rec.UpdatedAt, &rec.CommitMessages, &rec.Score,
		&rec.URL, &rec.ReviewResult, &rec.Additions, &rec.Deletions, &rec.LastCommitID)
	if err != nil {
		return nil, errm.Wrap(err, "get merge review")
	}
	return &rec, nil
}

// GetPushReview fetches one push review row by id.
func (s *Store) GetPushReview(ctx context.Context, id int64) (*PushReviewRecord, error) {
	var rec PushReviewRecord
	err := s.db.QueryRowContext(ctx, `
        SELECT id, project_name, author, branch, updated_at,
               commit_messages, score, review_result, additions, deletions
        FROM push_review_log WHERE id = ?
    `, id).Scan(&rec.ID, &rec.ProjectName, &rec.Author, &rec.Branch,
		&rec.UpdatedAt, &rec.CommitMessages, &rec.Score, &rec.ReviewResult,
		&rec.Additions, &rec.Deletions)
	if err != nil {
		return nil, errm.Wrap(err, "get push review")
	}
	return &rec, nil
}

func buildListQuery(base string, q Query) (string, []any) {
	var (
		b      strings.Builder
		params []any
	)
	b.WriteString(base)

	if len(q.Authors) > 0 {
		b.WriteString(" AND author IN (" + placeholders(len(q.Authors)) + ")")
		for _, a := range q.Authors {
			params = append(params, a)
		}
	}
	if len(q.Projects) > 0 {
		b.WriteString(" AND project_name IN (" + placeholders(len(q.Projects)) + ")")
		for _, p := range q.Projects {
			params = append(params, p)
		}
	}
	if q.UpdatedAfter > 0 {
		b.WriteString(" AND updated_at >= ?")
		params = append(params, q.UpdatedAfter)
	}
	if q.UpdatedBefore > 0 {
		b.WriteString(" AND updated_at <= ?")
		params = append(params, q.UpdatedBefore)
	}

	b.WriteString(" ORDER BY updated_at DESC")
	return b.String(), params
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
