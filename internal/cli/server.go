package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quizhub-service/internal/app"
	"quizhub-service/internal/config"
	transport "quizhub-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz scoring and leaderboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	if svc.feed != nil {
		go func() {
			if err := svc.feed.Run(ctx); err != nil {
				log.WithError(err).Error("standings feed stopped")
			}
		}()
	}
	if interval := config.TTLDuration(cfg.Rankings.Interval, 0); interval > 0 {
		go runRankSchedule(ctx, svc, interval)
	}

	boards := app.NewLeaderboardService(svc.deps)
	router := transport.NewRouter(transport.RouterConfig{
		Handler: transport.NewHandler(
			app.NewAttemptService(svc.deps),
			boards,
			app.NewActivityService(svc.deps),
		),
		WSHandler: transport.NewWSHandler(boards, svc.hub),
		Log:       log,
		Gatherer:  svc.registry,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quizhub service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runRankSchedule rebuilds the batch ranks every interval until ctx ends.
func runRankSchedule(ctx context.Context, svc *services, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = svc.recomputeRanks(ctx)
		}
	}
}
