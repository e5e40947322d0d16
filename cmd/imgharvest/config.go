package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgharvest/pkg/config"
	"imgharvest/pkg/ui"
)

func newConfigCmd(opts *options) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
		Long: `Manage imgharvest configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (IMGHARVEST_*)
  - .env files (./.env, ~/.imgharvest.env)
  - Configuration file
  - Default values`,
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ".imgharvest.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("configuration file already exists: %s", path)
			}

			cfg := config.DefaultConfig()
			cfg.Input.Manifest = "manifest.csv"
			cfg.Output.Directory = "images"
			if err := cfg.Save(path); err != nil {
				return err
			}
			ui.PrintSuccess("Configuration file created: " + path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the configuration after file and environment are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if err := cfg.LoadFromFile(opts.configFile); err != nil {
				return err
			}
			if err := cfg.LoadFromEnv(); err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to format configuration: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))

			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.Yellow("incomplete without flags: "+err.Error()))
			}
			return nil
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}
