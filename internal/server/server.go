package server

import (
	"context"
	"net/http"

	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/codehook/internal/provider"
	"github.com/maxbolgarin/codehook/internal/review"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/servex/v2"
)

// Server receives webhook deliveries from all configured providers on a
// single endpoint and hands them to the review service. Deliveries that
// reach orchestration are always acked with 200 so the origin platform
// does not retry; processing errors surface through the notifier.
type Server struct {
	providers *provider.Registry
	reviewer  *review.Service
	config    Config
	log       logze.Logger
	server    *servex.Server
}

// New creates a new webhook server.
func New(cfg Config, providers *provider.Registry, reviewer *review.Service) (*Server, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}

	log := logze.With("module", "server")

	server, err := servex.NewServer(
		servex.WithReadTimeout(cfg.Timeout),
		servex.WithIdleTimeout(cfg.Timeout*2),
		servex.WithLogger(log),
		servex.WithHealthEndpoint(),
		servex.WithDefaultMetrics(),
		servex.WithCertificate(cfg.Certificate),
	)
	if err != nil {
		return nil, erro.Wrap(err, "failed to create server")
	}

	h := &Server{
		providers: providers,
		reviewer:  reviewer,
		config:    cfg,
		log:       log,
		server:    server,
	}

	server.HandleFunc(cfg.Endpoint, h.handleWebhook)

	return h, nil
}

// Start starts the webhook server
func (h *Server) Start(ctx context.Context) error {
	if h.config.EnableHTTPS {
		return h.server.StartHTTPS(h.config.Address)
	}
	return h.server.StartHTTP(h.config.Address)
}

// Stop stops the webhook server
func (h *Server) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// handleWebhook routes one delivery by its event header: each Git
// provider sets its own, SVN hook scripts set none.
func (h *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	body, err := ctx.Read()
	if err != nil {
		ctx.BadRequest(err, "failed to read webhook body")
		return
	}

	providerType, eventName := resolveProvider(r)
	log := h.log.WithFields("provider", providerType, "event", eventName)

	p, ok := h.providers.Get(providerType)
	if !ok {
		log.Warn("received webhook for unconfigured provider")
		ctx.Response(http.StatusOK)
		return
	}

	if err := p.ValidateWebhook(body, authFromHeaders(r, providerType)); err != nil {
		ctx.Unauthorized(err, "webhook validation failed")
		return
	}

	event, err := p.ParseWebhook(body, eventName)
	if err != nil {
		// Unsupported event kinds are routine; never make the origin retry.
		log.Debug("ignoring webhook event", "reason", err.Error())
		ctx.Response(http.StatusOK)
		return
	}

	log.Info("received webhook event", "kind", event.Kind, "project", event.ProjectName, "action", event.Action)

	if err := h.reviewer.Submit(context.WithoutCancel(r.Context()), p, event); err != nil {
		log.Err(err, "failed to submit event for processing")
	}

	ctx.Response(http.StatusOK)
}

// resolveProvider picks the provider from event headers. Gitea is
// checked before GitHub because it mirrors X-GitHub-Event for
// compatibility.
func resolveProvider(r *http.Request) (model.ProviderType, string) {
	if name := r.Header.Get("X-Gitea-Event"); name != "" {
		return model.ProviderGitea, name
	}
	if name := r.Header.Get("X-Gitlab-Event"); name != "" {
		return model.ProviderGitLab, name
	}
	if name := r.Header.Get("X-GitHub-Event"); name != "" {
		return model.ProviderGitHub, name
	}
	return model.ProviderSVN, ""
}

func authFromHeaders(r *http.Request, t model.ProviderType) string {
	switch t {
	case model.ProviderGitLab:
		return r.Header.Get("X-Gitlab-Token")
	case model.ProviderGitHub:
		return r.Header.Get("X-Hub-Signature-256")
	case model.ProviderGitea:
		return r.Header.Get("X-Gitea-Token")
	default:
		return r.Header.Get("X-Webhook-Token")
	}
}
