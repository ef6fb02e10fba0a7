package model

import "context"

// CodeProvider defines the contract every VCS provider implements
// (GitLab, GitHub, Gitea, SVN). The orchestrator consumes all providers
// identically; provider-specific field-path knowledge stays behind this
// interface.
type CodeProvider interface {
	// ParseWebhook turns a raw webhook body into a provider-agnostic event.
	// eventName is the value of the provider's event header, empty when the
	// provider does not send one.
	ParseWebhook(payload []byte, eventName string) (*Event, error)

	// ValidateWebhook checks the webhook secret/signature.
	ValidateWebhook(payload []byte, authToken string) error

	// ExtractCommits returns the ordered commit metadata for the event.
	ExtractCommits(ctx context.Context, event *Event) ([]CommitInfo, error)

	// ExtractChanges returns the raw per-file change list for the event.
	ExtractChanges(ctx context.Context, event *Event) ([]RawChange, error)

	// PostComment posts the review text back to the origin platform.
	// Best-effort: callers log failures and move on.
	PostComment(ctx context.Context, event *Event, body string) error

	// IsTargetBranchProtected reports whether the event's target branch is
	// protected on the origin platform.
	IsTargetBranchProtected(ctx context.Context, event *Event) (bool, error)
}

// ReviewEngine is the external black box producing a textual verdict from a
// change-set and a commit summary.
type ReviewEngine interface {
	Review(ctx context.Context, changes []RawChange, commitsText string) (string, error)
}

// Notifier delivers out-of-band operational notifications (fatal errors,
// draft-MR notices). Implementations must not fail the caller.
type Notifier interface {
	Send(ctx context.Context, message string)
}
