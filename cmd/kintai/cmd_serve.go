package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"kintai/internal/gateway"
	"kintai/internal/reservation"
	"kintai/internal/scheduler"
	"kintai/internal/status"
	"kintai/internal/worklog"
)

type ServeCmd struct {
	flags *Flags
	app   *App
}

func NewServeCmd(flags *Flags, app *App) *ServeCmd {
	return &ServeCmd{flags: flags, app: app}
}

func (cmd *ServeCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the gateway and the reservation scheduler",
		UsageText: "kintai serve",
		Description: `Starts the HTTP gateway backed by redis and the sqlite work log, and
the periodic scheduler that executes due break and checkout reservations.`,
		Action: cmd.run,
	})
	return root
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.app.Config
	log := cmd.app.Log

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	states, err := status.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer states.Close()

	resv := reservation.NewRedisStore(states.Client())

	logs, err := worklog.OpenSQLiteStore(cfg.WorklogPath)
	if err != nil {
		return fmt.Errorf("open work log: %w", err)
	}
	defer logs.Close()

	srv, err := gateway.NewServer(gateway.ServerOptions{
		Status:         states,
		Reservations:   resv,
		Logs:           logs,
		Logger:         log.With().Str("component", "gateway").Logger(),
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	if cfg.Scheduler.Enabled == nil || *cfg.Scheduler.Enabled {
		runner, err := scheduler.NewRunner(scheduler.RunnerOptions{
			Reservations: resv,
			Logs:         logs,
			Marker:       scheduler.NewRedisWakeMarker(states.Client()),
			Logger:       log.With().Str("component", "scheduler").Logger(),
		})
		if err != nil {
			return err
		}
		stopTrigger, err := scheduler.StartTrigger(ctx, runner, cfg.Scheduler.Trigger)
		if err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer stopTrigger()
		log.Info().Str("trigger", cfg.Scheduler.Trigger).Msg("scheduler started")
	}

	httpSrv := &http.Server{
		Addr:              cfg.Gateway.Listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Gateway.Listen).Msg("gateway listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway: %w", err)
		}
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("gateway shutdown")
	}
	log.Info().Msg("stopped")
	return nil
}
