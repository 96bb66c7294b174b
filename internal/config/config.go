package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openmined/foldersync/internal/mirror"
	"github.com/openmined/foldersync/internal/utils"
	"gopkg.in/yaml.v3"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".foldersync", "config.yaml")
)

var (
	ErrSourceMissing    = errors.New("source directory does not exist")
	ErrReplicaInSource  = errors.New("replica directory must not be inside the source directory")
	ErrSourceInReplica  = errors.New("source directory must not be inside the replica directory")
	ErrLogFileInReplica = errors.New("log file must not be inside the replica directory")
	ErrInvalidInterval  = errors.New("interval must be a positive number of seconds")
)

type Config struct {
	SourceDir     string        `yaml:"source"`
	ReplicaDir    string        `yaml:"replica"`
	Interval      int           `yaml:"interval"`
	LogFile       string        `yaml:"log_file"`
	Serial        bool          `yaml:"serial,omitempty"`
	Watch         bool          `yaml:"watch,omitempty"`
	Guard         string        `yaml:"guard,omitempty"`
	CreateMode    string        `yaml:"create_mode,omitempty"`
	Ignore        []string      `yaml:"ignore,omitempty"`
	Include       []string      `yaml:"include,omitempty"`
	ModTimeWindow time.Duration `yaml:"mtime_window,omitempty"`
	Verbose       bool          `yaml:"verbose,omitempty"`
	DiagLog       string        `yaml:"diag_log,omitempty"`
	Path          string        `yaml:"-"`
}

// SyncInterval is the wait between two cycles.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// LockPath is the instance lock held next to the log file.
func (c *Config) LockPath() string {
	return c.LogFile + ".lock"
}

// Validate resolves every path to an absolute one and checks that the
// source, replica and log file can be used together.
func (c *Config) Validate() error {
	var err error

	if c.SourceDir, err = utils.ResolvePath(c.SourceDir); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if !utils.DirExists(c.SourceDir) {
		return fmt.Errorf("%w: %s", ErrSourceMissing, c.SourceDir)
	}

	if c.ReplicaDir, err = utils.ResolvePath(c.ReplicaDir); err != nil {
		return fmt.Errorf("replica: %w", err)
	}
	if utils.IsSubPath(c.SourceDir, c.ReplicaDir) {
		return ErrReplicaInSource
	}
	if utils.IsSubPath(c.ReplicaDir, c.SourceDir) {
		return ErrSourceInReplica
	}

	if c.LogFile, err = utils.ResolvePath(c.LogFile); err != nil {
		return fmt.Errorf("log file: %w", err)
	}
	if utils.IsSubPath(c.ReplicaDir, c.LogFile) {
		return ErrLogFileInReplica
	}

	if c.DiagLog != "" {
		if c.DiagLog, err = utils.ResolvePath(c.DiagLog); err != nil {
			return fmt.Errorf("diagnostic log: %w", err)
		}
		if utils.IsSubPath(c.ReplicaDir, c.DiagLog) {
			return fmt.Errorf("diagnostic log: %w", ErrLogFileInReplica)
		}
		if c.DiagLog == c.LogFile {
			return errors.New("diagnostic log must differ from the event log file")
		}
	}

	if c.Interval <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, c.Interval)
	}
	if c.ModTimeWindow < 0 {
		return fmt.Errorf("mtime window cannot be negative: %s", c.ModTimeWindow)
	}

	if _, err := mirror.NewGuard(c.Guard); err != nil {
		return err
	}
	if _, err := mirror.ParseCreateMode(c.CreateMode); err != nil {
		return err
	}
	if _, err := mirror.NewFilter(c.Ignore, c.Include); err != nil {
		return err
	}

	if c.Path != "" {
		if c.Path, err = utils.ResolvePath(c.Path); err != nil {
			return fmt.Errorf("config path: %w", err)
		}
	}

	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}
