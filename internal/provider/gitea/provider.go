package gitea

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
)

var _ model.CodeProvider = (*Provider)(nil)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider implements the CodeProvider interface for Gitea through its REST
// API. There is no maintained Gitea SDK, so requests go through a plain
// HTTP client against /api/v1.
type Provider struct {
	client *cliex.HTTP
	config model.ProviderConfig
	logger logze.Logger
}

// New creates a new Gitea provider.
func New(config model.ProviderConfig) (*Provider, error) {
	if config.Token == "" {
		return nil, errm.New("Gitea token is required")
	}
	if config.BaseURL == "" {
		return nil, errm.New("Gitea base URL is required")
	}
	log := logze.With("provider", "gitea", "component", "provider")

	baseURL := strings.TrimSuffix(config.BaseURL, "/") + "/api/v1"
	cli, err := cliex.New(cliex.WithBaseURL(baseURL), cliex.WithLogger(log))
	if err != nil {
		return nil, errm.Wrap(err, "failed to create Gitea client")
	}
	cli.C().SetHeader("Authorization", "token "+config.Token)

	return &Provider{
		client: cli,
		config: config,
		logger: log,
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

// ParseWebhook parses a Gitea webhook body routed by the X-Gitea-Event
// header value.
func (p *Provider) ParseWebhook(payload []byte, eventName string) (*model.Event, error) {
	switch eventName {
	case "push":
		return p.parsePushEvent(payload)
	case "pull_request":
		return p.parsePullRequestEvent(payload)
	default:
		return nil, errm.New("unsupported Gitea event: %s", eventName)
	}
}

func (p *Provider) parsePushEvent(payload []byte) (*model.Event, error) {
	var body pushPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errm.Wrap(err, "failed to parse Gitea push payload")
	}
	if body.Repository.Name == "" {
		return nil, errm.New("push payload is missing repository")
	}

	author := lang.Check(body.Sender.Login, body.Sender.Username)
	if author == "" {
		author = lang.Check(body.Pusher.Login, body.Pusher.Username)
	}

	event := &model.Event{
		Kind:        model.EventPush,
		Provider:    model.ProviderGitea,
		ProjectID:   body.Repository.FullName,
		ProjectName: body.Repository.Name,
		Author:      author,
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
		return nil, errm.Wrap(err, "failed to parse Gitea pull request payload")
	}
	pr := body.PullRequest
	if body.Repository.Name == "" || pr.Number == 0 {
		return nil, errm.New("pull request payload is missing repository or number")
	}

	return &model.Event{
		Kind:         model.EventMerge,
		Provider:     model.ProviderGitea,
		Action:       body.Action,
		ProjectID:    body.Repository.FullName,
		ProjectName:  body.Repository.Name,
		Author:       lang.Check(pr.User.Login, lang.Check(pr.User.Username, lang.Check(body.Sender.Login, body.Sender.Username))),
		URL:          lang.Check(pr.HTMLURL, pr.URL),
		URLSlug:      p.config.URLSlug,
		MergeIID:     pr.Number,
		SourceBranch: lang.Check(pr.Head.Ref, pr.HeadBranch),
		TargetBranch: lang.Check(pr.Base.Ref, pr.BaseBranch),
		LastCommitID: lang.Check(pr.Head.SHA, pr.MergeCommitSHA),
		Draft:        pr.Draft,
	}, nil
}

// ExtractCommits returns payload commits for pushes and the PR commit list
// for pull requests, with messages reduced to their first line.
func (p *Provider) ExtractCommits(ctx context.Context, event *model.Event) ([]model.CommitInfo, error) {
	if event.Kind == model.EventPush {
		return event.PayloadCommits, nil
	}

	var commits []giteaCommit
	path := fmt.Sprintf("repos/%s/pulls/%d/commits", event.ProjectID, event.MergeIID)
	if _, err := p.client.Get(ctx, path, &commits); err != nil {
		return nil, errm.Wrap(err, "failed to list pull request commits")
	}

	result := make([]model.CommitInfo, 0, len(commits))
	for _, c := range commits {
		message := c.Commit.Message
		if idx := strings.IndexByte(message, '\n'); idx > 0 {
			message = message[:idx]
		}
		result = append(result, model.CommitInfo{
			ID:        c.SHA,
			Message:   message,
			Author:    c.Commit.Author.Name,
			Timestamp: parseTime(c.Commit.Author.Date),
			URL:       c.HTMLURL,
		})
	}
	return result, nil
}

// ExtractChanges lists changed files for pull requests and walks the push
// payload commits one by one for push events, since Gitea has no compare
// diff endpoint usable across all supported versions.
func (p *Provider) ExtractChanges(ctx context.Context, event *model.Event) ([]model.RawChange, error) {
	if event.Kind == model.EventMerge {
		var files []giteaChangedFile
		path := fmt.Sprintf("repos/%s/pulls/%d/files", event.ProjectID, event.MergeIID)
		if _, err := p.client.Get(ctx, path, &files); err != nil {
			return nil, errm.Wrap(err, "failed to list pull request files")
		}

		changes := make([]model.RawChange, 0, len(files))
		for _, f := range files {
			changes = append(changes, model.RawChange{
				Path:      f.Filename,
				Status:    fileStatus(f.Status),
				Additions: f.Additions,
				Deletions: f.Deletions,
				HasStats:  true,
			})
		}
		return changes, nil
	}

	// Deduplicate files touched by several commits of one push, keeping the
	// last status seen for each path.
	seen := make(map[string]int)
	var changes []model.RawChange
	for _, payloadCommit := range event.PayloadCommits {
		var commit giteaCommit
		path := fmt.Sprintf("repos/%s/git/commits/%s", event.ProjectID, payloadCommit.ID)
		if _, err := p.client.Get(ctx, path, &commit); err != nil {
			return nil, errm.Wrap(err, "failed to get commit details")
		}
		for _, f := range commit.Files {
			change := model.RawChange{
				Path:   f.Filename,
				Status: fileStatus(f.Status),
			}
			if idx, ok := seen[f.Filename]; ok {
				changes[idx] = change
				continue
			}
			seen[f.Filename] = len(changes)
			changes = append(changes, change)
		}
	}
	return changes, nil
}

// PostComment posts the review as an issue comment for pull requests. Gitea
// has no commit comment API, so push results are only logged.
func (p *Provider) PostComment(ctx context.Context, event *model.Event, body string) error {
	if event.Kind == model.EventPush {
		p.logger.Info("review result for push", "project", event.ProjectName,
			"branch", event.Branch, "result", lang.TruncateString(body, 200))
		return nil
	}

	path := fmt.Sprintf("repos/%s/issues/%d/comments", event.ProjectID, event.MergeIID)
	if _, err := p.client.Post(ctx, path, map[string]string{"body": body}); err != nil {
		return errm.Wrap(err, "failed to create pull request comment")
	}
	return nil
}

// IsTargetBranchProtected reports whether the PR base branch is protected.
func (p *Provider) IsTargetBranchProtected(ctx context.Context, event *model.Event) (bool, error) {
	var branch giteaBranch
	path := fmt.Sprintf("repos/%s/branches/%s", event.ProjectID, event.TargetBranch)
	if _, err := p.client.Get(ctx, path, &branch); err != nil {
		return false, errm.Wrap(err, "failed to get target branch from Gitea")
	}
	return branch.Protected, nil
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

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
