package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iliamunaev/taskload/internal/app"
	"github.com/iliamunaev/taskload/internal/config"
	"github.com/iliamunaev/taskload/internal/logging"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, log, nil)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyAddr, ":8080", "listen address")
	f.Int(config.KeyMaxConcurrent, 8, "jobs allowed to hold a slot at once")
	f.Duration(config.KeyRequestTimeout, 10*time.Second, "deadline for batch requests")
	f.Duration(config.KeyDefaultDelay, 200*time.Millisecond, "delay for jobs that set none")
	f.Duration(config.KeyRetention, time.Minute, "how long finished operations stay visible")
	f.Duration(config.KeyShutdownTimeout, 15*time.Second, "grace period for in-flight work on shutdown")
	f.String(config.KeyLogLevel, "info", "log level (debug, info, warn, error)")
	_ = v.BindPFlags(f)

	return cmd
}

// run serves the API until ctx ends, then drains HTTP requests and in-flight
// operations within the shutdown timeout. If ready is non-nil it receives the
// bound address once the listener is open.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger, ready chan<- string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := app.New(cfg, log, reg)

	srv := &http.Server{
		Handler:           a.Handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	httpErr := srv.Shutdown(shutdownCtx)
	appErr := a.Shutdown(shutdownCtx)
	if err := errors.Join(httpErr, appErr); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("stopped")
	return nil
}
