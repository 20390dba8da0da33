package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httptransport "neonote/internal/transport/http"
)

const shutdownGrace = 10 * time.Second

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the local job tracker API",
		GroupID: "jobs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if addr == "" {
				addr = app.cfg.ListenAddr
			}

			handler := httptransport.NewHandler(app.jobs, app.chat, app.auth, app.cfg.UploadMaxBytes, app.logger)
			router := httptransport.NewRouter(handler, app.metrics.Handler())

			srv := &http.Server{
				Addr:              addr,
				Handler:           httptransport.WithCORS(router, app.cfg.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
				// Event streams end with the command context.
				BaseContext: func(net.Listener) context.Context { return cmd.Context() },
			}
			return serve(cmd.Context(), srv, app)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default LISTEN_ADDR)")
	return cmd
}

func serve(ctx context.Context, srv *http.Server, app *application) error {
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info().
			Str("addr", srv.Addr).
			Str("backend", app.cfg.APIBaseURL).
			Msg("server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
