package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/corkboard/internal/board"
	"github.com/hay-kot/corkboard/internal/commands"
	"github.com/hay-kot/corkboard/internal/core/config"
	"github.com/hay-kot/corkboard/internal/core/logging"
	"github.com/hay-kot/corkboard/internal/core/presence"
	"github.com/hay-kot/corkboard/internal/core/task"
	"github.com/hay-kot/corkboard/internal/data/db"
	"github.com/hay-kot/corkboard/internal/data/stores"
	"github.com/hay-kot/corkboard/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "corkboard",
		Usage:     "Shared task board with collaborative edit locks",
		UsageText: "corkboard [global options] command [command options]",
		Description: `Corkboard keeps one task list shared between many users. Edits take a
per-task lock with a 5-minute expiry, and connected clients see each
other's changes live.

This CLI drives the same collaboration service the network transport
uses, acting as one (trusted) caller identity per invocation.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("CORKBOARD_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/corkboard.log)",
				Sources:     cli.EnvVars("CORKBOARD_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("CORKBOARD_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("CORKBOARD_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "caller user id for mutating commands",
				Sources:     cli.EnvVars("CORKBOARD_USER"),
				Value:       defaultUser(),
				Destination: &flags.User,
			},
			&cli.StringFlag{
				Name:        "username",
				Usage:       "caller display name (defaults to --user)",
				Sources:     cli.EnvVars("CORKBOARD_USERNAME"),
				Destination: &flags.Username,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/corkboard.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "corkboard.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger.Hook(logging.ContextHook{})
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			flags.Selector = newSelector(cfg, logging.Component("selector"))

			store := flags.Selector.Store(ctx)
			coordinator := presence.NewCoordinator(store, logging.Component("presence"))
			flags.Service = board.NewService(store, coordinator, log.Logger)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if flags.Selector != nil {
				flags.Selector.Reset() // closes the durable backend if open
			}
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	commands.NewLsCmd(flags).Register(app)
	commands.NewNewCmd(flags).Register(app)
	commands.NewToggleCmd(flags).Register(app)
	commands.NewLockCmd(flags).Register(app)
	commands.NewRmCmd(flags).Register(app)

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newSelector wires the backend selector from config. The reachability
// probe stands in for the connection-manager collaborator: the durable
// backend is "reachable" when its data directory can be created.
func newSelector(cfg *config.Config, logger zerolog.Logger) *stores.Selector {
	reachable := func(context.Context) bool {
		if cfg.Storage.Backend == config.BackendMemory {
			return false
		}
		return os.MkdirAll(cfg.DataDir, 0o755) == nil
	}

	openDurable := func(context.Context) (task.Store, func() error, error) {
		database, err := db.Open(cfg.DataDir, db.OpenOptions{
			MaxOpenConns: cfg.Storage.MaxOpenConns,
			MaxIdleConns: cfg.Storage.MaxIdleConns,
			BusyTimeout:  cfg.Storage.BusyTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return stores.NewTaskStore(database), database.Close, nil
	}

	return stores.NewSelector(stores.SelectorOptions{
		Reachable:   reachable,
		OpenDurable: openDurable,
		Logger:      logger,
	})
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}
