package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"kintai/internal/config"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func build() string {
	v, c := version, commit
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					c = s.Value
				}
			}
		}
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s (%s)", v, c)
}

// Flags are the global options shared by every subcommand.
type Flags struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
}

// App is populated by the root command's Before hook and read by the
// subcommands.
type App struct {
	Config config.Config
	Log    zerolog.Logger
}

func newLogger(level, file string) (zerolog.Logger, func(), error) {
	closer := func() {}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	writer := os.Stderr
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}
		closer = func() { _ = f.Close() }
		writer = f
	}

	l := zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
	return l, closer, nil
}

func main() {
	ctx := context.Background()

	var (
		flags     = &Flags{}
		app       = &App{}
		logCloser func()
	)

	root := &cli.Command{
		Name:      "kintai",
		Usage:     "Work-time tracker with reserved break and checkout execution",
		UsageText: "kintai [global options] command [command options]",
		Version:   build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("KINTAI_CONFIG"),
				Value:       "kintai.yaml",
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("KINTAI_LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("KINTAI_LOG_FILE"),
				Destination: &flags.LogFile,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}

			level := flags.LogLevel
			if level == "" {
				level = cfg.Log.Level
			}
			file := flags.LogFile
			if file == "" {
				file = cfg.Log.File
			}
			logger, closer, err := newLogger(level, file)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			logCloser = closer

			app.Config = cfg
			app.Log = logger
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	root = NewServeCmd(flags, app).Register(root)
	root = NewWatchCmd(flags, app).Register(root)
	root = NewReserveCmd(flags, app).Register(root)
	root = NewStatusCmd(flags, app).Register(root)

	if err := root.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
