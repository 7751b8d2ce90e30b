package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	flagship "github.com/TimurManjosov/flagship-go-sdk"
	"github.com/TimurManjosov/flagship-go-sdk/internal/cli"
	"github.com/TimurManjosov/flagship-go-sdk/internal/transport"
)

var (
	evaluateUserID  string
	evaluateDefault string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [experiment|flag|config|message] <key>",
	Short: "Evaluate one decision for an ad-hoc user",
	Args:  cobra.ExactArgs(2),
	Long: `Evaluate a single decision against the workspace snapshot, printing the
resolved variation or value and the decision reason. No events leave the
machine.

Examples:
  flagshipctl evaluate experiment 42 --user alice --default A
  flagshipctl evaluate flag 7 --user alice
  flagshipctl evaluate config checkout_button_color --user alice --default blue
  flagshipctl evaluate message 3 --user alice --platform IOS`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if evaluateUserID == "" {
			return fmt.Errorf("--user is required")
		}

		client, err := newLocalClient()
		if err != nil {
			return err
		}
		defer client.Close()

		u := flagship.User{ID: evaluateUserID}
		outputFormat := cli.OutputFormat(format)

		kind, key := args[0], args[1]
		switch kind {
		case "experiment":
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return fmt.Errorf("experiment key must be numeric: %w", err)
			}
			defaultKey := evaluateDefault
			if defaultKey == "" {
				defaultKey = "A"
			}
			return cli.PrintDecision(client.EvaluateExperiment(id, u, defaultKey), outputFormat)

		case "flag":
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return fmt.Errorf("flag key must be numeric: %w", err)
			}
			return cli.PrintDecision(client.EvaluateFeatureFlag(id, u), outputFormat)

		case "config":
			return cli.PrintDecision(client.EvaluateRemoteConfig(key, u, evaluateDefault), outputFormat)

		case "message":
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return fmt.Errorf("message key must be numeric: %w", err)
			}
			return cli.PrintDecision(client.EvaluateInAppMessage(id, u), outputFormat)

		default:
			return fmt.Errorf("unknown decision kind: %s", kind)
		}
	},
}

// discardTransport swallows event dispatches so CLI evaluations never hit the
// network.
type discardTransport struct{}

func (discardTransport) Execute(context.Context, transport.Request) (transport.Response, error) {
	return transport.Response{StatusCode: 200}, nil
}

// newLocalClient builds an SDK client over the workspace file with event
// delivery discarded.
func newLocalClient() (*flagship.Client, error) {
	path, err := cli.ResolveWorkspaceFile(workspaceFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}

	localCfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}
	effectivePlatform := platform
	if effectivePlatform == "" {
		effectivePlatform = localCfg.Platform
	}

	client, err := flagship.NewClient(&flagship.Config{
		SDKKey:         "flagshipctl-local",
		EventBaseURL:   "http://localhost",
		FlushInterval:  time.Minute,
		BatchSize:      100,
		QueueCapacity:  1000,
		EventRetention: 1000,
		Platform:       effectivePlatform,
	}, flagship.WithTransport(discardTransport{}))
	if err != nil {
		return nil, err
	}
	if err := client.UpdateWorkspace(data); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateUserID, "user", "", "User id to evaluate for")
	evaluateCmd.Flags().StringVar(&evaluateDefault, "default", "", "Default variation key or config value")
}
