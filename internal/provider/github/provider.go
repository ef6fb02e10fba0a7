package github

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"golang.org/x/oauth2"
)

var _ model.CodeProvider = (*Provider)(nil)

// Provider implements the CodeProvider interface for GitHub.
type Provider struct {
	client *github.Client
	config model.ProviderConfig
	logger logze.Logger
}

// New creates a new GitHub provider.
func New(config model.ProviderConfig) (*Provider, error) {
	if config.Token == "" {
		return nil, errm.New("GitHub token is required")
	}

	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: config.Token},
	))
	client := github.NewClient(httpClient)

	if config.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, errm.Wrap(err, "failed to set GitHub enterprise URL")
		}
	}

	return &Provider{
		client: client,
		config: config,
		logger: logze.With("provider", "github", "component", "provider"),
	}, nil
}

// ValidateWebhook verifies the X-Hub-Signature-256 HMAC over the payload.
func (p *Provider) ValidateWebhook(payload []byte, signature string) error {
	if p.config.WebhookSecret == "" {
		return nil // No secret configured, skip validation
	}

	mac := hmac.New(sha256.New, []byte(p.config.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256="))) {
		return errm.New("GitHub webhook signature verification failed")
	}
	return nil
}

// ParseWebhook parses a GitHub webhook body routed by the X-GitHub-Event
// header value.
func (p *Provider) ParseWebhook(payload []byte, eventName string) (*model.Event, error) {
	switch eventName {
	case "push":
		return p.parsePushEvent(payload)
	case "pull_request":
		return p.parsePullRequestEvent(payload)
	default:
		return nil, errm.New("unsupported GitHub event: %s", eventName)
	}
}

func (p *Provider) parsePushEvent(payload []byte) (*model.Event, error) {
	var body pushPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitHub push payload")
	}
	if body.Repository.Name == "" {
		return nil, errm.New("push payload is missing repository")
	}

	event := &model.Event{
		Kind:        model.EventPush,
		Provider:    model.ProviderGitHub,
		ProjectID:   body.Repository.FullName,
		ProjectName: body.Repository.Name,
		Author:      body.Sender.Login,
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

func (p *Provider) parsePullRequestEvent(payload []byte) (*model.Event, error) {
	var body pullRequestPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitHub pull request payload")
	}
	if body.Repository.Name == "" || body.PullRequest.Number == 0 {
		return nil, errm.New("pull request payload is missing repository or number")
	}

	return &model.Event{
		Kind:         model.EventMerge,
		Provider:     model.ProviderGitHub,
		Action:       body.Action,
		ProjectID:    body.Repository.FullName,
		ProjectName:  body.Repository.Name,
		Author:       body.PullRequest.User.Login,
		URL:          body.PullRequest.HTMLURL,
		URLSlug:      p.config.URLSlug,
		MergeIID:     body.PullRequest.Number,
		SourceBranch: body.PullRequest.Head.Ref,
		TargetBranch: body.PullRequest.Base.Ref,
		LastCommitID: body.PullRequest.Head.SHA,
		Draft:        body.PullRequest.Draft,
	}, nil
}

// ExtractCommits returns payload commits for pushes and the PR commit list
// for pull requests. PR commit messages are reduced to their first line,
// matching the title-style summary the other providers produce.
func (p *Provider) ExtractCommits(ctx context.Context, event *model.Event) ([]model.CommitInfo, error) {
	if event.Kind == model.EventPush {
		return event.PayloadCommits, nil
	}

	owner, repo, err := splitProjectID(event.ProjectID)
	if err != nil {
		return nil, err
	}

	var result []model.CommitInfo
	opts := &github.ListOptions{PerPage: 100}
	for {
		commits, resp, err := p.client.PullRequests.ListCommits(ctx, owner, repo, event.MergeIID, opts)
		if err != nil {
			return nil, errm.Wrap(err, "failed to list pull request commits")
		}
		for _, c := range commits {
			message := c.GetCommit().GetMessage()
			if idx := strings.IndexByte(message, '\n'); idx > 0 {
				message = message[:idx]
			}
			result = append(result, model.CommitInfo{
				ID:        c.GetSHA(),
				Message:   message,
				Author:    c.GetCommit().GetAuthor().GetName(),
				Timestamp: c.GetCommit().GetAuthor().GetDate().Time,
				URL:       c.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// ExtractChanges lists PR files for pull requests and compares push bounds
// for pushes. GitHub supplies per-file addition/deletion counts directly.
func (p *Provider) ExtractChanges(ctx context.Context, event *model.Event) ([]model.RawChange, error) {
	owner, repo, err := splitProjectID(event.ProjectID)
	if err != nil {
		return nil, err
	}

	if event.Kind == model.EventPush {
		comparison, _, err := p.client.Repositories.CompareCommits(ctx, owner, repo,
			event.BeforeSHA, event.AfterSHA, &github.ListOptions{PerPage: 100})
		if err != nil {
			return nil, errm.Wrap(err, "failed to compare push revisions")
		}
		return convertFiles(comparison.Files), nil
	}

	var files []*github.CommitFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := p.client.PullRequests.ListFiles(ctx, owner, repo, event.MergeIID, opts)
		if err != nil {
			return nil, errm.Wrap(err, "failed to list pull request files")
		}
		files = append(files, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return convertFiles(files), nil
}

// PostComment posts the review text as an issue comment on the PR, or as a
// commit comment on the push head for push events.
func (p *Provider) PostComment(ctx context.Context, event *model.Event, body string) error {
	owner, repo, err := splitProjectID(event.ProjectID)
	if err != nil {
		return err
	}

	if event.Kind == model.EventPush {
		_, _, err = p.client.Repositories.CreateComment(ctx, owner, repo, event.AfterSHA,
			&github.RepositoryComment{Body: &body})
		if err != nil {
			return errm.Wrap(err, "failed to create commit comment")
		}
		return nil
	}

	_, _, err = p.client.Issues.CreateComment(ctx, owner, repo, event.MergeIID,
		&github.IssueComment{Body: &body})
	if err != nil {
		return errm.Wrap(err, "failed to create pull request comment")
	}
	return nil
}

// IsTargetBranchProtected reports whether the PR base branch is protected.
func (p *Provider) IsTargetBranchProtected(ctx context.Context, event *model.Event) (bool, error) {
	owner, repo, err := splitProjectID(event.ProjectID)
	if err != nil {
		return false, err
	}

	branch, _, err := p.client.Repositories.GetBranch(ctx, owner, repo, event.TargetBranch, 0)
	if err != nil {
		return false, errm.Wrap(err, "failed to get target branch from GitHub")
	}
	return branch.GetProtected(), nil
}

func convertFiles(files []*github.CommitFile) []model.RawChange {
	changes := make([]model.RawChange, 0, len(files))
	for _, f := range files {
		changes = append(changes, model.RawChange{
			Path:      f.GetFilename(),
			Status:    fileStatus(f.GetStatus()),
			Diff:      f.GetPatch(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			HasStats:  true,
		})
	}
	return changes
}

func fileStatus(status string) model.ChangeStatus {
	switch status {
	case "added":
		return model.StatusAdded
	case "removed", "deleted":
		return model.StatusRemoved
	case "renamed":
		return model.StatusRenamed
	default:
		return model.StatusModified
	}
}

func splitProjectID(projectID string) (owner, repo string, err error) {
	parts := strings.Split(projectID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errm.New("invalid GitHub project ID format, expected 'owner/repo'")
	}
	return parts[0], parts[1], nil
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
