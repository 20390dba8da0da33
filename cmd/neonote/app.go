package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"neonote/internal/application/auth"
	"neonote/internal/application/chat"
	"neonote/internal/application/jobs"
	"neonote/internal/config"
	"neonote/internal/infrastructure/backend"
	"neonote/internal/infrastructure/filesystem"
	"neonote/internal/infrastructure/gateway"
	"neonote/internal/infrastructure/metrics"
	"neonote/internal/infrastructure/reporting"
	"neonote/internal/infrastructure/session"
)

type appKey struct{}

// application holds the wired services shared by every command.
type application struct {
	cfg      config.Config
	logger   zerolog.Logger
	sessions *session.Store
	rollbar  *reporting.Rollbar
	metrics  *metrics.Metrics
	jobs     *jobs.Service
	auth     *auth.Service
	chat     *chat.Service
	source   *filesystem.Source
}

func newApplication(cfg config.Config, logger zerolog.Logger) (*application, error) {
	sessions, err := session.Open(cfg.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	httpClient := gateway.NewClient(cfg.APIBaseURL, sessions, gateway.Options{
		RequestTimeout: cfg.RequestTimeout,
		UploadTimeout:  cfg.UploadTimeout,
	}, logger)
	api := backend.NewClient(httpClient, logger)

	sinks := reporting.Multi{reporting.NewLog(logger)}
	var rb *reporting.Rollbar
	if cfg.RollbarToken != "" {
		rb = reporting.NewRollbar(cfg.RollbarToken, cfg.RollbarEnvironment, version)
		sinks = append(sinks, rb)
	}

	m := metrics.New()
	policy := cfg.UploadPolicy()

	return &application{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		rollbar:  rb,
		metrics:  m,
		jobs: jobs.NewService(api, jobs.Options{
			Policy:            policy,
			PollInterval:      cfg.PollInterval,
			PollMaxAttempts:   cfg.PollMaxAttempts,
			UploadConcurrency: cfg.UploadConcurrency,
			Reporter:          sinks,
			Observer:          m,
		}, logger),
		auth:   auth.NewService(api, sessions, logger),
		chat:   chat.NewService(api, logger),
		source: filesystem.NewSource(policy),
	}, nil
}

// Close stops polling and flushes every sink.
func (a *application) Close() error {
	a.jobs.Shutdown()

	var errs []error
	if a.rollbar != nil {
		errs = append(errs, a.rollbar.Close())
	}
	errs = append(errs, a.sessions.Close())
	return errors.Join(errs...)
}

func withApplication(ctx context.Context, app *application) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

func appFrom(ctx context.Context) (*application, error) {
	app, ok := ctx.Value(appKey{}).(*application)
	if !ok || app == nil {
		return nil, errors.New("application not initialized")
	}
	return app, nil
}
