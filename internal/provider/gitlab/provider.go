package gitlab

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const defaultBaseURL = "https://gitlab.com"

var _ model.CodeProvider = (*Provider)(nil)

// Provider implements the CodeProvider interface for GitLab.
type Provider struct {
	client *gitlab.Client
	config model.ProviderConfig
	logger logze.Logger
}

// New creates a new GitLab provider.
func New(config model.ProviderConfig) (*Provider, error) {
	if config.Token == "" {
		return nil, errm.New("GitLab token is required")
	}

	baseURL := lang.Check(config.BaseURL, defaultBaseURL)
	client, err := gitlab.NewClient(config.Token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, errm.Wrap(err, "failed to create GitLab client")
	}

	return &Provider{
		client: client,
		config: config,
		logger: logze.With("provider", "gitlab", "component", "provider"),
	}, nil
}

// ValidateWebhook validates the webhook secret token.
func (p *Provider) ValidateWebhook(_ []byte, authToken string) error {
	if p.config.WebhookSecret == "" {
		return nil // No secret configured, skip validation
	}
	if authToken != p.config.WebhookSecret {
		return errm.New("invalid webhook token")
	}
	return nil
}

// ParseWebhook parses a GitLab webhook body. The object_kind field decides
// between push and merge request events; anything else is unsupported.
func (p *Provider) ParseWebhook(payload []byte, _ string) (*model.Event, error) {
	var kind struct {
		ObjectKind string `json:"object_kind"`
	}
	if err := json.Unmarshal(payload, &kind); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitLab webhook payload")
	}

	switch kind.ObjectKind {
	case "push":
		return p.parsePushEvent(payload)
	case "merge_request":
		return p.parseMergeRequestEvent(payload)
	default:
		return nil, errm.New("unsupported GitLab event kind: %s", kind.ObjectKind)
	}
}

func (p *Provider) parsePushEvent(payload []byte) (*model.Event, error) {
	var body pushPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitLab push payload")
	}
	if body.Project.ID == 0 {
		return nil, errm.New("push payload is missing project")
	}

	event := &model.Event{
		Kind:        model.EventPush,
		Provider:    model.ProviderGitLab,
		ProjectID:   strconv.Itoa(body.Project.ID),
		ProjectName: body.Project.Name,
		Author:      body.UserUsername,
		Branch:      strings.TrimPrefix(body.Ref, "refs/heads/"),
		BeforeSHA:   body.Before,
		AfterSHA:    body.After,
		URLSlug:     p.config.URLSlug,
	}

	for _, c := range body.Commits {
		event.PayloadCommits = append(event.PayloadCommits, model.CommitInfo{
			ID:        c.ID,
			Message:   c.Message,
			Author:    c.Author.Name,
			Timestamp: parseTime(c.Timestamp),
			URL:       c.URL,
		})
	}

	return event, nil
}

func (p *Provider) parseMergeRequestEvent(payload []byte) (*model.Event, error) {
	var body mergeRequestPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitLab merge request payload")
	}
	attrs := body.ObjectAttributes
	if body.Project.ID == 0 || attrs.IID == 0 {
		return nil, errm.New("merge request payload is missing project or iid")
	}

	return &model.Event{
		Kind:         model.EventMerge,
		Provider:     model.ProviderGitLab,
		Action:       attrs.Action,
		ProjectID:    strconv.Itoa(body.Project.ID),
		ProjectName:  body.Project.Name,
		Author:       body.User.Username,
		URL:          attrs.URL,
		URLSlug:      p.config.URLSlug,
		MergeIID:     attrs.IID,
		SourceBranch: attrs.SourceBranch,
		TargetBranch: attrs.TargetBranch,
		LastCommitID: attrs.LastCommit.ID,
		Draft:        attrs.Draft || attrs.WorkInProgress,
	}, nil
}

// ExtractCommits returns the event's commits: from the payload for pushes
// and from the API for merge requests. Merge request commit messages carry
// the commit title, which is what ends up in the review summary.
func (p *Provider) ExtractCommits(ctx context.Context, event *model.Event) ([]model.CommitInfo, error) {
	if event.Kind == model.EventPush {
		return event.PayloadCommits, nil
	}

	pid, err := strconv.Atoi(event.ProjectID)
	if err != nil {
		return nil, errm.Wrap(err, "invalid project ID")
	}

	commits, _, err := p.client.MergeRequests.GetMergeRequestCommits(pid, event.MergeIID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, errm.Wrap(err, "failed to get merge request commits from GitLab")
	}

	result := make([]model.CommitInfo, 0, len(commits))
	for _, c := range commits {
		result = append(result, model.CommitInfo{
			ID:        c.ID,
			Message:   c.Title,
			Author:    c.AuthorName,
			Timestamp: lang.Deref(c.CommittedDate),
			URL:       c.WebURL,
		})
	}
	return result, nil
}

// ExtractChanges returns per-file diffs: merge request diffs for merge
// events, a before/after repository comparison for pushes.
func (p *Provider) ExtractChanges(ctx context.Context, event *model.Event) ([]model.RawChange, error) {
	pid, err := strconv.Atoi(event.ProjectID)
	if err != nil {
		return nil, errm.Wrap(err, "invalid project ID")
	}

	if event.Kind == model.EventPush {
		compare, _, err := p.client.Repositories.Compare(pid, &gitlab.CompareOptions{
			From: &event.BeforeSHA,
			To:   &event.AfterSHA,
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errm.Wrap(err, "failed to compare push revisions")
		}
		return convertDiffs(compare.Diffs), nil
	}

	var allDiffs []*gitlab.MergeRequestDiff
	page := 1
	for {
		diffs, resp, err := p.client.MergeRequests.ListMergeRequestDiffs(pid, event.MergeIID, &gitlab.ListMergeRequestDiffsOptions{
			ListOptions: gitlab.ListOptions{Page: page},
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errm.Wrap(err, "failed to list merge request diffs")
		}
		allDiffs = append(allDiffs, diffs...)
		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	changes := make([]model.RawChange, 0, len(allDiffs))
	for _, d := range allDiffs {
		changes = append(changes, model.RawChange{
			Path:   lang.Check(d.NewPath, d.OldPath),
			Status: diffStatus(d.NewFile, d.DeletedFile, d.RenamedFile),
			Diff:   d.Diff,
		})
	}
	return changes, nil
}

// PostComment posts the review text as a merge request note, or as a commit
// comment on the push head for push events.
func (p *Provider) PostComment(ctx context.Context, event *model.Event, body string) error {
	pid, err := strconv.Atoi(event.ProjectID)
	if err != nil {
		return errm.Wrap(err, "invalid project ID")
	}

	if event.Kind == model.EventPush {
		_, _, err = p.client.Commits.PostCommitComment(pid, event.AfterSHA, &gitlab.PostCommitCommentOptions{
			Note: &body,
		}, gitlab.WithContext(ctx))
		if err != nil {
			return errm.Wrap(err, "failed to post commit comment")
		}
		return nil
	}

	_, _, err = p.client.Notes.CreateMergeRequestNote(pid, event.MergeIID, &gitlab.CreateMergeRequestNoteOptions{
		Body: &body,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return errm.Wrap(err, "failed to create merge request note")
	}
	return nil
}

// IsTargetBranchProtected reports whether the merge target branch is
// protected in the project settings.
func (p *Provider) IsTargetBranchProtected(ctx context.Context, event *model.Event) (bool, error) {
	pid, err := strconv.Atoi(event.ProjectID)
	if err != nil {
		return false, errm.Wrap(err, "invalid project ID")
	}

	branch, _, err := p.client.Branches.GetBranch(pid, event.TargetBranch, gitlab.WithContext(ctx))
	if err != nil {
		return false, errm.Wrap(err, "failed to get target branch from GitLab")
	}
	return branch.Protected, nil
}

func convertDiffs(diffs []*gitlab.Diff) []model.RawChange {
	changes := make([]model.RawChange, 0, len(diffs))
	for _, d := range diffs {
		changes = append(changes, model.RawChange{
			Path:   lang.Check(d.NewPath, d.OldPath),
			Status: diffStatus(d.NewFile, d.DeletedFile, d.RenamedFile),
			Diff:   d.Diff,
		})
	}
	return changes
}

func diffStatus(isNew, isDeleted, isRenamed bool) model.ChangeStatus {
	switch {
	case isNew:
		return model.StatusAdded
	case isDeleted:
		return model.StatusRemoved
	case isRenamed:
		return model.StatusRenamed
	default:
		return model.StatusModified
	}
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
