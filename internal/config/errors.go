package config

import "errors"

var (
	ErrNoProviders      = errors.New("at least one provider must be configured")
	ErrMissingEngineURL = errors.New("review engine URL is required")
)
