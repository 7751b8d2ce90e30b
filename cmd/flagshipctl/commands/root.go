package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	workspaceFile string
	format        string
	platform      string
	quiet         bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagshipctl",
	Short: "Inspect and evaluate a workspace snapshot locally",
	Long: `Flagshipctl evaluates experiments, feature flags, remote config parameters
and in-app messages against a workspace snapshot file, exactly as the SDK
would on device.

Examples:
  flagshipctl list experiments --workspace workspace.json
  flagshipctl evaluate experiment 42 --user alice --default A
  flagshipctl evaluate config api_url --user alice --default http://example.com
  flagshipctl config init`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspaceFile, "workspace", "", "Path to the workspace snapshot JSON file")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&platform, "platform", "", "Platform for in-app message evaluation")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}
