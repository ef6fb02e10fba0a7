package engine

import (
	"time"

	"github.com/maxbolgarin/errm"
)

const defaultTimeout = 2 * time.Minute

// Config represents review engine client configuration.
type Config struct {
	URL       string        `yaml:"url" env:"ENGINE_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"ENGINE_TIMEOUT"`
	ProxyURL  string        `yaml:"proxy_url" env:"ENGINE_PROXY_URL"`
	UserAgent string        `yaml:"user_agent" env:"ENGINE_USER_AGENT"`
}

func (cfg *Config) PrepareAndValidate() error {
	if cfg.URL == "" {
		return errm.New("engine url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return nil
}
