package storage

import "github.com/maxbolgarin/lang"

const defaultPath = "data/data.db"

// Config represents persistence store configuration.
type Config struct {
	Path string `yaml:"path" env:"STORAGE_PATH"`
}

func (cfg *Config) PrepareAndValidate() error {
	cfg.Path = lang.Check(cfg.Path, defaultPath)
	return nil
}

// MergeReviewRecord is one row of the merge request review log.
type MergeReviewRecord struct {
	ID             int64
	ProjectName    string
	Author         string
	SourceBranch   string
	TargetBranch   string
	UpdatedAt      int64
	CommitMessages string
	Score          int
	URL            string
	ReviewResult   string
	Additions      int
	Deletions      int
	LastCommitID   string
}

// PushReviewRecord is one row of the push review log.
type PushReviewRecord struct {
	ID             int64
	ProjectName    string
	Author         string
	Branch         string
	UpdatedAt      int64
	CommitMessages string
	Score          int
	ReviewResult   string
	Additions      int
	Deletions      int
}

// Query filters review log listings. Zero-valued fields are ignored.
// UpdatedBefore of 0 means no upper bound.
type Query struct {
	Authors       []string
	Projects      []string
	UpdatedAfter  int64
	UpdatedBefore int64
}
