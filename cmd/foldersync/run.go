package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/openmined/foldersync/internal/config"
	"github.com/openmined/foldersync/internal/mirror"
	"github.com/openmined/foldersync/internal/utils"
)

const logHeader = "foldersync - LOG"

// run mirrors cfg.SourceDir into cfg.ReplicaDir until ctx is cancelled or
// the user asks to exit on stdin.
func run(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lock := newInstanceLock(cfg.LockPath())
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("instance unlock", "error", err)
		}
	}()

	if err := utils.EnsureDir(cfg.ReplicaDir); err != nil {
		return fmt.Errorf("failed to create replica directory %s: %w", cfg.ReplicaDir, err)
	}

	logFile, err := openLogFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	// the log file goes first and keeps receiving lines when stdout is gone
	events := mirror.NewEventLog(utils.NewTeeWriter(logFile, stdout), nil)
	defer events.Close()

	guard, err := mirror.NewGuard(cfg.Guard)
	if err != nil {
		return err
	}

	engine, err := mirror.NewEngine(mirror.Options{
		SourceRoot:    cfg.SourceDir,
		ReplicaRoot:   cfg.ReplicaDir,
		Guard:         guard,
		Events:        events,
		CreateMode:    mirror.CreateMode(cfg.CreateMode),
		Serial:        cfg.Serial,
		Ignore:        cfg.Ignore,
		Include:       cfg.Include,
		ModTimeWindow: cfg.ModTimeWindow,
	})
	if err != nil {
		return err
	}

	var driverOpts []mirror.DriverOption
	if cfg.Watch {
		watcher := mirror.NewSourceWatcher(cfg.SourceDir)
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("source watcher unavailable, polling only", "error", err)
		} else {
			defer watcher.Stop()
			driverOpts = append(driverOpts, mirror.WithTrigger(watcher.Trigger()))
		}
	}

	driver, err := mirror.NewDriver(engine, cfg.SyncInterval(), driverOpts...)
	if err != nil {
		return err
	}

	interactive := isTerminal(stdin)
	showBanner(stdout, cfg, interactive)
	if interactive {
		go listenForExit(ctx, stdin, cancel)
	}

	return driver.Run(ctx)
}

// openLogFile opens path for appending, writing the header line first when
// the file is new.
func openLogFile(path string) (*os.File, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	isNew := !utils.FileExists(path)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if isNew {
		if _, err := fmt.Fprintln(file, logHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write log header: %w", err)
		}
	}
	return file, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
