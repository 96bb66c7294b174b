package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/foldersync/internal/config"
	"github.com/openmined/foldersync/internal/mirror"
	"github.com/openmined/foldersync/internal/utils"
	"github.com/openmined/foldersync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	home, _  = os.UserHomeDir()
	logLevel = new(slog.LevelVar)

	// set by main, nil in tests
	consoleHandler slog.Handler
)

const envPrefix = "FOLDERSYNC"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "foldersync [source replica interval logfile]",
		Short:   "Keep a replica folder identical to a source folder",
		Version: version.Detailed(),
		Args:    positionalArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// all good now, errors past this point are not usage errors
			cmd.SilenceUsage = true
			if cfg.Verbose {
				logLevel.Set(slog.LevelDebug)
			}
			if cfg.DiagLog != "" {
				closer, err := attachDiagLog(cfg.DiagLog)
				if err != nil {
					return err
				}
				defer closer.Close()
			}

			defer slog.Info("Bye!")
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().SortFlags = false
	addMirrorFlags(cmd.Flags())
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "foldersync config file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}

func addMirrorFlags(flags *pflag.FlagSet) {
	flags.StringP("source", "s", "", "source directory to mirror")
	flags.StringP("replica", "r", "", "replica directory kept identical to the source")
	flags.IntP("interval", "i", 0, "seconds to wait between two sync cycles")
	flags.StringP("log-file", "l", "", "file receiving one line per replica change")
	flags.Bool("serial", false, "run the deletion pass before the creation pass instead of concurrently")
	flags.BoolP("watch", "w", false, "also sync as soon as the source changes")
	flags.String("guard", mirror.GuardLock, "busy file detection: lock, open-files or none")
	flags.String("create-mode", string(mirror.CreateCopy), "how new files are created: copy or placeholder")
	flags.StringSlice("ignore", nil, "gitignore style pattern to leave alone (repeatable)")
	flags.StringSlice("include", nil, "glob of files to mirror, all files when unset (repeatable)")
	flags.Duration("mtime-window", 0, "how much newer a source file must be to be copied again")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("diag-log", "", "also append diagnostic logs to this file")
}

// flag name -> config key
var mirrorKeys = map[string]string{
	"source":       "source",
	"replica":      "replica",
	"interval":     "interval",
	"log-file":     "log_file",
	"serial":       "serial",
	"watch":        "watch",
	"guard":        "guard",
	"create-mode":  "create_mode",
	"ignore":       "ignore",
	"include":      "include",
	"mtime-window": "mtime_window",
	"verbose":      "verbose",
	"diag-log":     "diag_log",
}

func positionalArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 4 {
		return fmt.Errorf("expected no arguments or exactly 4 (source replica interval logfile), got %d", len(args))
	}
	return nil
}

// loadConfig merges, from lowest to highest priority, the config file,
// FOLDERSYNC_* environment variables, flags and positional arguments.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	v := viper.New()

	v.SetConfigFile(resolveConfigPath(cmd))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	for flag, key := range mirrorKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if len(args) == 4 {
		interval, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("interval %q is not a whole number of seconds", args[2])
		}
		v.Set("source", args[0])
		v.Set("replica", args[1])
		v.Set("interval", interval)
		v.Set("log_file", args[3])
	}

	return &config.Config{
		Path:          v.ConfigFileUsed(),
		SourceDir:     v.GetString("source"),
		ReplicaDir:    v.GetString("replica"),
		Interval:      v.GetInt("interval"),
		LogFile:       v.GetString("log_file"),
		Serial:        v.GetBool("serial"),
		Watch:         v.GetBool("watch"),
		Guard:         v.GetString("guard"),
		CreateMode:    v.GetString("create_mode"),
		Ignore:        v.GetStringSlice("ignore"),
		Include:       v.GetStringSlice("include"),
		ModTimeWindow: v.GetDuration("mtime_window"),
		Verbose:       v.GetBool("verbose"),
		DiagLog:       v.GetString("diag_log"),
	}, nil
}

// attachDiagLog makes the default logger also write to path, without colors.
func attachDiagLog(path string) (io.Closer, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("failed to create diagnostic log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostic log: %w", err)
	}

	handlers := []slog.Handler{slog.NewTextHandler(file, &slog.HandlerOptions{Level: logLevel})}
	if consoleHandler != nil {
		handlers = append(handlers, consoleHandler)
	}
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(handlers...)))
	return file, nil
}

func main() {
	consoleHandler = tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(consoleHandler))

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
