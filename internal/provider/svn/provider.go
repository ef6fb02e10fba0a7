package svn

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
)

var _ model.CodeProvider = (*Provider)(nil)

const commandTimeout = 30 * time.Second

// Provider implements the CodeProvider interface for SVN commit events.
// Unlike the Git providers there is no structured change API: the diff
// arrives as a text blob in the webhook (or is fetched with the svn client)
// and is parsed by ParseDiff.
type Provider struct {
	config model.ProviderConfig
	logger logze.Logger

	// trustServerCert adds --trust-server-cert to svn invocations, for
	// self-signed server certificates.
	trustServerCert bool
}

// New creates a new SVN provider. No token is required: authentication, if
// any, travels inside the webhook payload.
func New(config model.ProviderConfig) (*Provider, error) {
	return &Provider{
		config: config,
		logger: logze.With("provider", "svn", "component", "provider"),
	}, nil
}

// WithTrustServerCert makes fallback svn invocations accept the server
// certificate without verification.
func (p *Provider) WithTrustServerCert() *Provider {
	p.trustServerCert = true
	return p
}

// ValidateWebhook compares the shared secret, when one is configured.
func (p *Provider) ValidateWebhook(payload []byte, authToken string) error {
	if p.config.WebhookSecret == "" {
		return nil
	}
	if authToken != p.config.WebhookSecret {
		return errm.New("invalid webhook token")
	}
	return nil
}

// ParseWebhook parses the hook script's JSON body. SVN commits are treated
// as push events on the conventional trunk branch.
func (p *Provider) ParseWebhook(payload []byte, _ string) (*model.Event, error) {
	var body svnPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errm.Wrap(err, "failed to parse SVN webhook payload")
	}

	repoURL := lang.Check(body.RepositoryURL, p.config.BaseURL)
	if repoURL == "" {
		return nil, errm.New("SVN repository URL is required")
	}
	revision := body.Revision.String()
	if revision == "" || revision == "0" {
		return nil, errm.New("SVN revision number is required")
	}

	return &model.Event{
		Kind:          model.EventPush,
		Provider:      model.ProviderSVN,
		ProjectName:   projectName(body, repoURL),
		Author:        lang.Check(body.Author, "unknown"),
		Branch:        "trunk",
		URLSlug:       SlugifyURL(repoURL),
		Revision:      revision,
		RepositoryURL: repoURL,
		DiffBlob:      body.Diff,
		SVNUsername:   body.SVNUsername,
		SVNPassword:   body.SVNPassword,
		CommitMessage: lang.Check(body.Message, body.CommitMessage),
		CommitTime:    body.Timestamp,
	}, nil
}

// ExtractCommits returns the single commit the revision describes, filling
// missing author/message/timestamp fields from `svn log` when possible.
func (p *Provider) ExtractCommits(ctx context.Context, event *model.Event) ([]model.CommitInfo, error) {
	commit := model.CommitInfo{
		ID:        event.Revision,
		Message:   event.CommitMessage,
		Author:    event.Author,
		Timestamp: parseTimestamp(event.CommitTime),
		URL:       event.RepositoryURL + "?revision=" + event.Revision,
	}

	if commit.Message == "" || commit.Author == "" || commit.Author == "unknown" {
		p.backfillFromLog(ctx, event, &commit)
	}

	return []model.CommitInfo{commit}, nil
}

// ExtractChanges parses the diff blob delivered with the webhook. When the
// hook did not attach one, it falls back to `svn diff` against the previous
// revision. The first revision of a repository has nothing to compare
// against and yields no changes.
func (p *Provider) ExtractChanges(ctx context.Context, event *model.Event) ([]model.RawChange, error) {
	if event.DiffBlob != "" {
		p.logger.Debug("using diff from webhook payload", "revision", event.Revision)
		if changes := ParseDiff(event.DiffBlob); len(changes) > 0 {
			return changes, nil
		}
		p.logger.Warn("webhook diff produced no changes, falling back to svn client", "revision", event.Revision)
	}

	rev, err := strconv.Atoi(event.Revision)
	if err != nil {
		return nil, errm.Wrap(err, "invalid SVN revision")
	}
	if rev <= 1 {
		p.logger.Info("first revision has no previous version to compare", "revision", event.Revision)
		return nil, nil
	}

	out, err := p.runSVN(ctx, event,
		"diff", "-r", strconv.Itoa(rev-1)+":"+strconv.Itoa(rev), event.RepositoryURL)
	if err != nil {
		return nil, errm.Wrap(err, "failed to get SVN diff")
	}

	return ParseDiff(out), nil
}

// PostComment is a no-op: SVN has no post-commit annotation mechanism, so
// the review result is only logged here and delivered via notifications.
func (p *Provider) PostComment(_ context.Context, event *model.Event, body string) error {
	p.logger.Info("review result for SVN revision",
		"revision", event.Revision, "result", lang.TruncateString(body, 200))
	return nil
}

// IsTargetBranchProtected always reports false: branch protection is a
// merge-event concept and SVN commits are handled as pushes.
func (p *Provider) IsTargetBranchProtected(context.Context, *model.Event) (bool, error) {
	return false, nil
}

func (p *Provider) backfillFromLog(ctx context.Context, event *model.Event, commit *model.CommitInfo) {
	out, err := p.runSVN(ctx, event, "log", "-r", event.Revision, "--xml", event.RepositoryURL)
	if err != nil {
		p.logger.Warn("failed to get commit info from svn log", "error", err.Error())
		return
	}

	var log svnLog
	if err := xml.Unmarshal([]byte(out), &log); err != nil || len(log.Entries) == 0 {
		p.logger.Warn("failed to parse svn log output", "revision", event.Revision)
		return
	}

	entry := log.Entries[0]
	if commit.Author == "" || commit.Author == "unknown" {
		commit.Author = lang.Check(entry.Author, commit.Author)
	}
	commit.Message = lang.Check(commit.Message, entry.Message)
	if commit.Timestamp.IsZero() {
		commit.Timestamp = parseTimestamp(entry.Date)
	}
}

func (p *Provider) runSVN(ctx context.Context, event *model.Event, args ...string) (string, error) {
	if event.SVNUsername != "" {
		args = append(args, "--username", event.SVNUsername)
	}
	if event.SVNPassword != "" {
		args = append(args, "--password", event.SVNPassword)
	}
	args = append(args, "--non-interactive")
	if p.trustServerCert {
		args = append(args, "--trust-server-cert")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "svn", args...).Output()
	if err != nil {
		return "", errm.Wrap(err, "svn command failed")
	}
	return string(out), nil
}

var (
	schemeRe   = regexp.MustCompile(`^[a-z+]+://`)
	nonAlnumRe = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// SlugifyURL turns a repository URL into an identifier safe for file names
// and log keys: scheme stripped, every other non-alphanumeric replaced with
// an underscore, trailing underscores trimmed.
func SlugifyURL(originalURL string) string {
	target := schemeRe.ReplaceAllString(originalURL, "")
	target = nonAlnumRe.ReplaceAllString(target, "_")
	return strings.TrimRight(target, "_")
}

func projectName(body svnPayload, repoURL string) string {
	if name := lang.Check(body.ProjectName, body.RepositoryName); name != "" {
		return name
	}
	if parsed, err := url.Parse(repoURL); err == nil {
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
	}
	return "unknown"
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
