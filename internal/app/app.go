package app

import (
	"context"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/maxbolgarin/codehook/internal/config"
	"github.com/maxbolgarin/codehook/internal/engine"
	"github.com/maxbolgarin/codehook/internal/events"
	"github.com/maxbolgarin/codehook/internal/model"
	"github.com/maxbolgarin/codehook/internal/notify"
	"github.com/maxbolgarin/codehook/internal/provider"
	"github.com/maxbolgarin/codehook/internal/review"
	"github.com/maxbolgarin/codehook/internal/server"
	"github.com/maxbolgarin/codehook/internal/storage"
	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
)

// Codehook is the main service that wires all components together
type Codehook struct {
	providers     *provider.Registry
	engine        *engine.Client
	store         *storage.Store
	notifier      model.Notifier
	bus           *events.Bus
	reviewer      *review.Service
	webhookServer *server.Server

	cfg config.Config
	log logze.Logger
}

// LoadConfig reads configuration from a YAML file when a path is given,
// falling back to environment variables.
func LoadConfig(path string) (config.Config, error) {
	var cfg config.Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, errm.Wrap(err, "failed to read config file")
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, errm.Wrap(err, "failed to read environment")
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errm.Wrap(err, "validate config")
	}

	return cfg, nil
}

// New creates the review pipeline service
func New(ctx contem.Context, cfg config.Config) (*Codehook, error) {
	service := &Codehook{
		cfg: cfg,
		log: logze.With("component", "app"),
	}

	if err := service.init(ctx, cfg); err != nil {
		return nil, errm.Wrap(err, "failed to initialize service")
	}

	return service, nil
}

// StartWebhook starts the webhook server.
func (s *Codehook) StartWebhook(ctx context.Context) error {
	if err := s.webhookServer.Start(ctx); err != nil {
		return errm.Wrap(err, "failed to start webhook server")
	}
	return nil
}

func (s *Codehook) init(ctx contem.Context, cfg config.Config) (err error) {
	s.providers, err = provider.NewRegistry(cfg.Providers)
	if err != nil {
		return errm.Wrap(err, "failed to create providers")
	}

	s.engine, err = engine.New(cfg.Engine)
	if err != nil {
		return errm.Wrap(err, "failed to create review engine client")
	}

	s.store, err = storage.New(cfg.Storage)
	if err != nil {
		return errm.Wrap(err, "failed to create storage")
	}
	ctx.Add(func(context.Context) error { return s.store.Close() })

	s.notifier, err = notify.New(cfg.Notifier)
	if err != nil {
		return errm.Wrap(err, "failed to create notifier")
	}

	s.bus, err = events.NewBus()
	if err != nil {
		return errm.Wrap(err, "failed to create event bus")
	}
	ctx.Add(func(context.Context) error { s.bus.Close(); return nil })

	s.reviewer, err = review.NewService(cfg.Review, s.engine, s.store, s.notifier, s.bus)
	if err != nil {
		return errm.Wrap(err, "failed to create review service")
	}
	ctx.Add(func(context.Context) error { s.reviewer.Close(); return nil })

	s.webhookServer, err = server.New(cfg.Server, s.providers, s.reviewer)
	if err != nil {
		return errm.Wrap(err, "failed to create webhook server")
	}
	ctx.Add(s.webhookServer.Stop)

	return nil
}
