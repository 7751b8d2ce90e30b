package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagship-go-sdk/internal/cli"
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

var listCmd = &cobra.Command{
	Use:       "list [experiments|flags|parameters|messages]",
	Short:     "List entities in the workspace snapshot",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"experiments", "flags", "parameters", "messages"},
	Long: `List entities of one kind from the workspace snapshot.

Examples:
  flagshipctl list experiments --workspace workspace.json
  flagshipctl list flags --format json
  flagshipctl list parameters --format yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lister, err := loadLister()
		if err != nil {
			return err
		}
		if quiet {
			return nil
		}

		outputFormat := cli.OutputFormat(format)
		switch args[0] {
		case "experiments":
			return cli.PrintExperiments(lister.Experiments(), outputFormat)
		case "flags":
			return cli.PrintExperiments(lister.FeatureFlags(), outputFormat)
		case "parameters":
			return cli.PrintParameters(lister.RemoteConfigParameters(), outputFormat)
		case "messages":
			return cli.PrintMessages(lister.InAppMessages(), outputFormat)
		default:
			return fmt.Errorf("unknown entity kind: %s", args[0])
		}
	},
}

// loadLister decodes the workspace file into an enumerable snapshot.
func loadLister() (workspace.Lister, error) {
	path, err := cli.ResolveWorkspaceFile(workspaceFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}
	ws, err := workspace.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workspace: %w", err)
	}
	lister, ok := ws.(workspace.Lister)
	if !ok {
		return nil, fmt.Errorf("workspace snapshot does not support listing")
	}
	return lister, nil
}

func init() {
	rootCmd.AddCommand(listCmd)
}
