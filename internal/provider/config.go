package provider

import (
	"slices"

	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/errm"
)

var supportedProviderTypes = []model.ProviderType{
	model.ProviderGitLab,
	model.ProviderGitHub,
	model.ProviderGitea,
	model.ProviderSVN,
}

// Config represents one VCS provider configuration.
type Config struct {
	Type          model.ProviderType `yaml:"type" env:"PROVIDER_TYPE"`
	BaseURL       string             `yaml:"base_url" env:"PROVIDER_BASE_URL"`
	Token         string             `yaml:"token" env:"PROVIDER_TOKEN"`
	WebhookSecret string             `yaml:"webhook_secret" env:"PROVIDER_WEBHOOK_SECRET"`
	URLSlug       string             `yaml:"url_slug" env:"PROVIDER_URL_SLUG"`

	// TrustServerCert applies to SVN only: accept the server certificate
	// of the repository host without verification.
	TrustServerCert bool `yaml:"trust_server_cert" env:"PROVIDER_TRUST_SERVER_CERT"`
}

func (c *Config) PrepareAndValidate() error {
	if c.Type == "" || !slices.Contains(supportedProviderTypes, c.Type) {
		return errm.New("invalid provider type: %s", c.Type)
	}
	if c.Type != model.ProviderSVN && c.Token == "" {
		return errm.New("token is required for provider %s", c.Type)
	}
	return nil
}
