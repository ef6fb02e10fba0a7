package config

import (
	"github.com/maxbolgarin/codehook/internal/engine"
	"github.com/maxbolgarin/codehook/internal/notify"
	"github.com/maxbolgarin/codehook/internal/provider"
	"github.com/maxbolgarin/codehook/internal/review"
	"github.com/maxbolgarin/codehook/internal/server"
	"github.com/maxbolgarin/codehook/internal/storage"
)

// Config represents the main application configuration
type Config struct {
	Server    server.Config     `yaml:"server"`
	Providers []provider.Config `yaml:"providers"`
	Engine    engine.Config     `yaml:"engine"`
	Notifier  notify.Config     `yaml:"notifier"`
	Review    review.Config     `yaml:"review"`
	Storage   storage.Config    `yaml:"storage"`
}

// Validate validates the configuration. Section defaults are applied by
// each section's own PrepareAndValidate at construction time.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return ErrNoProviders
	}
	if c.Engine.URL == "" {
		return ErrMissingEngineURL
	}
	return nil
}
