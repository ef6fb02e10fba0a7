package model

// EventKind splits webhook deliveries into the two review flows.
type EventKind string

const (
	EventPush  EventKind = "push"
	EventMerge EventKind = "merge"
)

// ProviderType identifies the origin platform of an event.
type ProviderType string

const (
	ProviderGitLab ProviderType = "gitlab"
	ProviderGitHub ProviderType = "github"
	ProviderGitea  ProviderType = "gitea"
	ProviderSVN    ProviderType = "svn"
)

// ProviderConfig represents provider-specific configuration.
type ProviderConfig struct {
	BaseURL       string
	Token         string
	WebhookSecret string
	URLSlug       string
}

// Event is the provider-agnostic view of one webhook delivery. Providers
// fill the fields their payload carries; the orchestrator reads only the
// generic ones and hands the event back to the same provider for
// extraction and comment posting.
type Event struct {
	Kind     EventKind
	Provider ProviderType
	Action   string

	ProjectID   string // provider-native identifier used for API calls
	ProjectName string
	Author      string
	URL         string
	URLSlug     string

	// Push events
	Branch         string
	BeforeSHA      string
	AfterSHA       string
	PayloadCommits []CommitInfo // commits embedded in the push payload

	// Merge/PR events
	MergeIID     int
	SourceBranch string
	TargetBranch string
	LastCommitID string
	Draft        bool

	// SVN commit events
	Revision      string
	RepositoryURL string
	DiffBlob      string
	SVNUsername   string
	SVNPassword   string
	CommitMessage string
	CommitTime    string
}

// PushReviewEvent is the immutable outcome of one push orchestration run.
type PushReviewEvent struct {
	ProjectName  string
	Author       string
	Branch       string
	UpdatedAt    int64 // epoch seconds at dispatch time
	Commits      []CommitInfo
	Score        int
	ReviewResult string
	URLSlug      string
	Additions    int
	Deletions    int
}

// MergeReviewEvent is the immutable outcome of one merge/PR orchestration run.
type MergeReviewEvent struct {
	ProjectName  string
	Author       string
	SourceBranch string
	TargetBranch string
	UpdatedAt    int64
	Commits      []CommitInfo
	Score        int
	URL          string
	ReviewResult string
	URLSlug      string
	Additions    int
	Deletions    int
	LastCommitID string
}
