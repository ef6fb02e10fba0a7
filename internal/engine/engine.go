package engine

import (
	"context"
	"strings"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
)

// Client calls the external review engine over HTTP. The engine is a
// black box: it takes the serialized change set and the commit summary
// and returns a free-text verdict.
type Client struct {
	cfg    Config
	cli    *cliex.HTTP
	logger logze.Logger
}

type reviewRequest struct {
	Changes string `json:"changes"`
	Commits string `json:"commits"`
}

type reviewResponse struct {
	Result string `json:"result"`
}

// New creates a review engine client.
func New(cfg Config) (*Client, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	cli, err := cliex.NewWithConfig(cliex.Config{
		BaseURL:        cfg.URL,
		UserAgent:      cfg.UserAgent,
		ProxyAddress:   cfg.ProxyURL,
		RequestTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to create HTTP client")
	}

	return &Client{
		cfg:    cfg,
		cli:    cli,
		logger: logze.With("module", "engine"),
	}, nil
}

// Review sends the filtered change set and the joined commit text to
// the engine and returns the verdict text.
func (c *Client) Review(ctx context.Context, changes []model.RawChange, commitsText string) (string, error) {
	req := reviewRequest{
		Changes: serializeChanges(changes),
		Commits: commitsText,
	}

	var resp reviewResponse
	if _, err := c.cli.Post(ctx, "", req, &resp); err != nil {
		return "", errm.Wrap(err, "failed to call review engine")
	}
	if resp.Result == "" {
		return "", errm.New("empty response from review engine")
	}

	return resp.Result, nil
}

func serializeChanges(changes []model.RawChange) string {
	var b strings.Builder
	for i, ch := range changes {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("=== ")
		b.WriteString(ch.Path)
		b.WriteString(" (")
		b.WriteString(string(ch.Status))
		b.WriteString(")\n")
		b.WriteString(ch.Diff)
		if !strings.HasSuffix(ch.Diff, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
