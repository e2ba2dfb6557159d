package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"kintai/internal/client"
	"kintai/internal/notify"
)

type WatchCmd struct {
	flags *Flags
	app   *App

	userID   string
	userName string
}

func NewWatchCmd(flags *Flags, app *App) *WatchCmd {
	return &WatchCmd{flags: flags, app: app}
}

func (cmd *WatchCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Open the terminal timer for a user",
		UsageText: "kintai watch [--user ID] [--name NAME]",
		Description: `Connects to the gateway, mirrors the user's work status and shows a
live timer. Pushed updates arrive over the websocket; a periodic poll
covers anything the push channel missed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Usage:       "user id (overrides config)",
				Destination: &cmd.userID,
			},
			&cli.StringFlag{
				Name:        "name",
				Usage:       "display name (overrides config)",
				Destination: &cmd.userName,
			},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.app.Config
	log := cmd.app.Log

	userID := strings.TrimSpace(cmd.userID)
	if userID == "" {
		userID = strings.TrimSpace(cfg.Client.UserID)
	}
	if userID == "" {
		return errors.New("user id is required (--user or client.user_id in config)")
	}
	userName := strings.TrimSpace(cmd.userName)
	if userName == "" {
		userName = strings.TrimSpace(cfg.Client.UserName)
	}
	if userName == "" {
		userName = userID
	}

	api, err := client.NewAPIClient(cfg.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway url: %w", err)
	}

	renderer := &client.ProgramRenderer{}
	screen := &client.ProgramNotifier{}

	notifiers := notify.Multi{screen, &notify.LogNotifier{Log: log}}
	if cfg.Email != nil {
		mailer, err := notify.NewEmailNotifier(*cfg.Email)
		if err != nil {
			return fmt.Errorf("email notifier: %w", err)
		}
		notifiers = append(notifiers, mailer)
	}

	engine, err := client.NewEngine(client.EngineOptions{
		UserID:   userID,
		UserName: userName,
		Renderer: renderer,
		Notifier: notifiers,
		Logger:   log.With().Str("component", "engine").Logger(),
	})
	if err != nil {
		return err
	}

	actions := client.NewActions(engine, api, log.With().Str("component", "actions").Logger())
	push := client.NewPushSubscriber(engine, api.WebsocketURL(userID), log.With().Str("component", "push").Logger())
	poller := client.NewPoller(engine, api, cfg.Client.PollInterval(), log.With().Str("component", "poller").Logger())
	reminders := client.NewReminders(engine, cfg.Client.EncourageInterval())
	guard := client.NewMidnightGuard(engine, actions, log.With().Str("component", "midnight").Logger())

	display := client.NewDisplay(userName, actions, push)
	p := tea.NewProgram(display, tea.WithAltScreen(), tea.WithReportFocus())
	renderer.Attach(p)
	screen.Attach(p)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go push.Run(runCtx)
	go poller.Run(runCtx)
	go reminders.Run(runCtx)
	go guard.Run(runCtx)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}
