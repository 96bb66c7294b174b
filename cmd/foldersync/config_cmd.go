package main

import (
	"fmt"

	"github.com/openmined/foldersync/internal/config"
	"github.com/openmined/foldersync/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the foldersync config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from flags and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(cmd)
			force, _ := cmd.Flags().GetBool("force")
			if utils.FileExists(path) && !force {
				return fmt.Errorf("config %s already exists, use --force to overwrite", path)
			}

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), green.Render("Config written to "+path))
			return err
		},
	}

	cmd.Flags().SortFlags = false
	addMirrorFlags(cmd.Flags())
	cmd.Flags().BoolP("force", "f", false, "overwrite an existing config file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(cmd))
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
