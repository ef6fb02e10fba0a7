package provider

import (
	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/codehook/internal/provider/gitea"
	"github.com/maxbolgarin/codehook/internal/provider/github"
	"github.com/maxbolgarin/codehook/internal/provider/gitlab"
	"github.com/maxbolgarin/codehook/internal/provider/svn"
	"github.com/maxbolgarin/erro"
)

// New creates a new VCS provider based on the configuration.
func New(cfg Config) (model.CodeProvider, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}

	cfgForProvider := model.ProviderConfig{
		BaseURL:       cfg.BaseURL,
		Token:         cfg.Token,
		WebhookSecret: cfg.WebhookSecret,
		URLSlug:       cfg.URLSlug,
	}

	var (
		provider model.CodeProvider
		err      error
	)

	switch cfg.Type {
	case model.ProviderGitLab:
		provider, err = gitlab.New(cfgForProvider)
	case model.ProviderGitHub:
		provider, err = github.New(cfgForProvider)
	case model.ProviderGitea:
		provider, err = gitea.New(cfgForProvider)
	case model.ProviderSVN:
		var p *svn.Provider
		p, err = svn.New(cfgForProvider)
		if err == nil && cfg.TrustServerCert {
			p = p.WithTrustServerCert()
		}
		provider = p
	default:
		return nil, erro.New("unsupported provider type: %s", cfg.Type)
	}
	if err != nil {
		return nil, erro.Wrap(err, "failed to create provider")
	}

	return provider, nil
}

// Registry holds every configured provider keyed by type, for routing
// webhook deliveries at the server boundary.
type Registry struct {
	providers map[model.ProviderType]model.CodeProvider
}

// NewRegistry builds all configured providers.
func NewRegistry(cfgs []Config) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, erro.New("at least one provider must be configured")
	}

	providers := make(map[model.ProviderType]model.CodeProvider, len(cfgs))
	for _, cfg := range cfgs {
		if _, ok := providers[cfg.Type]; ok {
			return nil, erro.New("duplicate provider configuration: %s", cfg.Type)
		}
		p, err := New(cfg)
		if err != nil {
			return nil, erro.Wrap(err, "failed to create provider "+string(cfg.Type))
		}
		providers[cfg.Type] = p
	}

	return &Registry{providers: providers}, nil
}

// Get returns the provider for the given type.
func (r *Registry) Get(t model.ProviderType) (model.CodeProvider, bool) {
	p, ok := r.providers[t]
	return p, ok
}
