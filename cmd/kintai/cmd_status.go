package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"kintai/internal/client"
	"kintai/internal/status"
)

type StatusCmd struct {
	flags *Flags
	app   *App

	userID string
	all    bool
}

func NewStatusCmd(flags *Flags, app *App) *StatusCmd {
	return &StatusCmd{flags: flags, app: app}
}

func (cmd *StatusCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show current work status",
		UsageText: "kintai status [--user ID | --all]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Usage:       "user id (overrides config)",
				Destination: &cmd.userID,
			},
			&cli.BoolFlag{
				Name:        "all",
				Usage:       "show every user",
				Destination: &cmd.all,
			},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	api, err := client.NewAPIClient(cmd.app.Config.Gateway.URL)
	if err != nil {
		return err
	}

	if cmd.all {
		records, err := api.AllStatus(ctx)
		if err != nil {
			return fmt.Errorf("fetch status: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("no status records")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tSTATE\tTASK\tSINCE")
		for _, st := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.UserID, describe(&st), st.CurrentTask, since(&st))
		}
		return w.Flush()
	}

	userID := strings.TrimSpace(cmd.userID)
	if userID == "" {
		userID = strings.TrimSpace(cmd.app.Config.Client.UserID)
	}
	if userID == "" {
		return fmt.Errorf("user id is required (--user, --all or client.user_id in config)")
	}

	st, err := api.Status(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	if st == nil || !st.IsWorking {
		fmt.Println("not working")
		return nil
	}
	fmt.Printf("%s: %s (since %s)\n", describe(st), st.CurrentTask, since(st))
	return nil
}

func describe(st *status.WorkStatus) string {
	switch {
	case st == nil || !st.IsWorking:
		return "off"
	case st.OnBreak():
		return "on break"
	default:
		return "working"
	}
}

func since(st *status.WorkStatus) string {
	if st == nil || st.StartTime == nil || st.StartTime.IsZero() {
		return "-"
	}
	return st.StartTime.Local().Format(time.Kitchen)
}
