package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"kintai/internal/client"
	"kintai/internal/reservation"
)

type ReserveCmd struct {
	flags *Flags
	app   *App

	userID string
	at     string
	action string
}

func NewReserveCmd(flags *Flags, app *App) *ReserveCmd {
	return &ReserveCmd{flags: flags, app: app}
}

func (cmd *ReserveCmd) Register(root *cli.Command) *cli.Command {
	userFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:        "user",
			Usage:       "user id (overrides config)",
			Destination: &cmd.userID,
		}
	}

	root.Commands = append(root.Commands, &cli.Command{
		Name:      "reserve",
		Usage:     "Manage break and checkout reservations",
		UsageText: "kintai reserve <set|ls|rm> [options]",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Reserve a break or checkout at a time of day",
				UsageText: "kintai reserve set --at 18:30 [--action stop|break]",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:        "at",
						Usage:       "time of day, 24h HH:MM",
						Required:    true,
						Destination: &cmd.at,
					},
					&cli.StringFlag{
						Name:        "action",
						Usage:       "what to execute: stop or break",
						Value:       "stop",
						Destination: &cmd.action,
					},
				},
				Action: cmd.set,
			},
			{
				Name:      "ls",
				Usage:     "List open reservations",
				UsageText: "kintai reserve ls",
				Flags:     []cli.Flag{userFlag()},
				Action:    cmd.ls,
			},
			{
				Name:      "rm",
				Usage:     "Delete a reservation by id",
				UsageText: "kintai reserve rm <id>",
				Action:    cmd.rm,
			},
		},
	})
	return root
}

func (cmd *ReserveCmd) user() (string, error) {
	id := strings.TrimSpace(cmd.userID)
	if id == "" {
		id = strings.TrimSpace(cmd.app.Config.Client.UserID)
	}
	if id == "" {
		return "", errors.New("user id is required (--user or client.user_id in config)")
	}
	return id, nil
}

func (cmd *ReserveCmd) api() (*client.APIClient, error) {
	return client.NewAPIClient(cmd.app.Config.Gateway.URL)
}

func (cmd *ReserveCmd) set(ctx context.Context, c *cli.Command) error {
	userID, err := cmd.user()
	if err != nil {
		return err
	}
	api, err := cmd.api()
	if err != nil {
		return err
	}

	hour, minute, err := reservation.ParseTimeOfDay(cmd.at)
	if err != nil {
		return err
	}
	at, err := reservation.NextOccurrence(hour, minute, time.Now())
	if err != nil {
		return err
	}

	var action reservation.Action
	var id string
	switch strings.TrimSpace(cmd.action) {
	case "stop", "":
		action = reservation.ActionStop
		id = reservation.StopID(userID)
	case "break":
		action = reservation.ActionBreak
		id = reservation.NewBreakID(userID)
	default:
		return fmt.Errorf("unknown action %q (want stop or break)", cmd.action)
	}

	res := reservation.Reservation{
		ID:            id,
		UserID:        userID,
		UserName:      strings.TrimSpace(cmd.app.Config.Client.UserName),
		Action:        action,
		ScheduledTime: at,
		Status:        reservation.StateReserved,
	}
	if err := api.SaveReservation(ctx, res); err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	fmt.Printf("reserved %s at %s (%s)\n", action, at.Format("2006-01-02 15:04"), id)
	return nil
}

func (cmd *ReserveCmd) ls(ctx context.Context, c *cli.Command) error {
	userID, err := cmd.user()
	if err != nil {
		return err
	}
	api, err := cmd.api()
	if err != nil {
		return err
	}

	list, err := api.Reservations(ctx, userID)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("no open reservations")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTION\tSCHEDULED")
	for _, res := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.ID, res.Action, res.ScheduledTime.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (cmd *ReserveCmd) rm(ctx context.Context, c *cli.Command) error {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return errors.New("reservation id is required")
	}
	api, err := cmd.api()
	if err != nil {
		return err
	}
	if err := api.DeleteReservation(ctx, id); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	fmt.Println("deleted", id)
	return nil
}
