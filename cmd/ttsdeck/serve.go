package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ttsdeck/internal/api"
	"ttsdeck/internal/config"
	"ttsdeck/internal/orchestrator"
	"ttsdeck/internal/session"
	"ttsdeck/internal/uibridge"
)

func buildServeCmd(opts *rootOpts) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the UI bridge: model orchestration, generation and state streaming over loopback HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envStr("TTSDECK_ADDR", ""), "HTTP listen address, e.g. 127.0.0.1:8520")
	return cmd
}

func runServe(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	client := api.New(api.Config{BaseURL: cfg.ServerURL, Timeout: cfg.RequestTimeout()})
	orch := orchestrator.New(client, orchestrator.Config{
		PollInterval:  cfg.PollInterval(),
		ProgressTick:  cfg.ProgressTick(),
		ProgressGrace: cfg.ProgressGrace(),
		Publisher:     uibridge.MetricsPublisher{},
		Logger:        log.With().Str("component", "orchestrator").Logger(),
	})
	ctrl := session.New(client, orch, session.Config{
		Logger: log.With().Str("component", "session").Logger(),
	})

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	uibridge.SetLogger(log.With().Str("component", "uibridge").Logger())
	uibridge.SetBaseContext(baseCtx)
	if len(cfg.CORSOrigins) > 0 {
		uibridge.SetCORSOptions(true, cfg.CORSOrigins)
	}

	if err := orch.Start(baseCtx); err != nil {
		// The poll loop keeps retrying, so a cold server is not fatal.
		log.Warn().Err(err).Msg("initial poll failed, will retry")
	}
	defer orch.Stop()

	srv := &http.Server{Addr: cfg.Addr, Handler: uibridge.NewMux(orch, ctrl)}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("server", cfg.ServerURL).Msg("ttsdeck bridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
