package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagship-go-sdk/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage flagshipctl configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &cli.Config{
			WorkspaceFile: "workspace.json",
			Platform:      "ANDROID",
		}
		if err := cli.SaveConfig(cfg); err != nil {
			return err
		}
		path, err := cli.GetConfigPath()
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("Wrote %s\n", path)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		return cli.PrintDecision(cfg, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
