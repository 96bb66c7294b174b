package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/openmined/foldersync/internal/config"
	"github.com/openmined/foldersync/internal/utils"
	"github.com/spf13/cobra"
)

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-path",
		Short: "Print the resolved config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath(cmd))
			return err
		},
	}
}

// resolveConfigPath determines which config file path to use, honoring (in order):
// 1) An explicitly set --config flag
// 2) FOLDERSYNC_CONFIG environment variable
// 3) Existing config files in common locations
// 4) The default path
func resolveConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}

	if envPath := os.Getenv(envPrefix + "_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		config.DefaultConfigPath,
		filepath.Join(home, ".config", "foldersync", "config.yaml"),
	}

	for _, candidate := range candidates {
		if utils.FileExists(candidate) {
			return candidate
		}
	}

	return config.DefaultConfigPath
}
