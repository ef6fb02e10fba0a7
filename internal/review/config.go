package review

// Config represents review pipeline behavior configuration.
type Config struct {
	PushReviewEnabled          bool     `yaml:"push_review_enabled" env:"PUSH_REVIEW_ENABLED" env-default:"true"`
	MergeOnlyProtectedBranches bool     `yaml:"merge_review_only_protected_branches_enabled" env:"MERGE_REVIEW_ONLY_PROTECTED_BRANCHES_ENABLED"`
	SupportedExtensions        []string `yaml:"supported_extensions" env:"SUPPORTED_EXTENSIONS"`
}

func (cfg *Config) PrepareAndValidate() error {
	if len(cfg.SupportedExtensions) == 0 {
		cfg.SupportedExtensions = []string{
			".go", ".java", ".py", ".php", ".js", ".ts", ".vue",
			".c", ".cpp", ".h", ".cs", ".rb", ".rs", ".kt",
			".yml", ".yaml", ".css", ".md", ".sql",
		}
	}
	return nil
}
