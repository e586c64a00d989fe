package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/ownding/headscale-console/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var system, force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				var err error
				if path, err = config.GetConfigPath(system); err != nil {
					return err
				}
			}
			source := ""
			if _, err := os.Stat(path); err == nil {
				if !force {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
				source = path
			}
			cfg, err := config.Load(cmd.Flags(), source)
			if err != nil {
				return err
			}
			if err := config.WriteFile(cfg, path); err != nil {
				return err
			}
			return out.Success("Configuration written to "+path, map[string]any{"path": path})
		},
	}
	initCmd.Flags().BoolVar(&system, "system", false, "Write the system-wide file instead of the per-user one")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := newOutputFormatter(cmd)
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.REST.APIKey = maskSecret(cfg.REST.APIKey)
			text, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			return out.Print(cfg, string(text))
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}

// maskSecret keeps the first four characters of a key.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "********"
	}
	return s[:4] + "********"
}
