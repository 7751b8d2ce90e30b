// Package cli holds the output formatting and local configuration shared by
// the flagshipctl commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
)

// OutputFormat specifies the output format for CLI commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintExperiments outputs experiments (or feature flags) in the given format.
func PrintExperiments(experiments []workspace.Experiment, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(experimentRows(experiments))
	case FormatYAML:
		return printYAML(experimentRows(experiments))
	case FormatTable:
		return printExperimentTable(experiments)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintParameters outputs remote config parameters in the given format.
func PrintParameters(params []workspace.RemoteConfigParameter, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(parameterRows(params))
	case FormatYAML:
		return printYAML(parameterRows(params))
	case FormatTable:
		return printParameterTable(params)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintMessages outputs in-app messages in the given format.
func PrintMessages(messages []workspace.InAppMessage, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(messageRows(messages))
	case FormatYAML:
		return printYAML(messageRows(messages))
	case FormatTable:
		return printMessageTable(messages)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintDecision outputs one evaluation result.
func PrintDecision(decision any, format OutputFormat) error {
	switch format {
	case FormatYAML:
		return printYAML(decision)
	default:
		return printJSON(decision)
	}
}

type experimentRow struct {
	ID         int64  `json:"id" yaml:"id"`
	Key        int64  `json:"key" yaml:"key"`
	Type       string `json:"type" yaml:"type"`
	Status     string `json:"status" yaml:"status"`
	Variations string `json:"variations" yaml:"variations"`
}

func experimentRows(experiments []workspace.Experiment) []experimentRow {
	rows := make([]experimentRow, 0, len(experiments))
	for _, e := range experiments {
		keys := make([]string, 0, len(e.Variations))
		for _, v := range e.Variations {
			keys = append(keys, v.Key)
		}
		rows = append(rows, experimentRow{
			ID:         e.ID,
			Key:        e.Key,
			Type:       string(e.Type),
			Status:     string(e.Status),
			Variations: strings.Join(keys, ","),
		})
	}
	return rows
}

type parameterRow struct {
	ID          int64  `json:"id" yaml:"id"`
	Key         string `json:"key" yaml:"key"`
	Type        string `json:"type" yaml:"type"`
	TargetRules int    `json:"targetRules" yaml:"target_rules"`
}

func parameterRows(params []workspace.RemoteConfigParameter) []parameterRow {
	rows := make([]parameterRow, 0, len(params))
	for _, p := range params {
		rows = append(rows, parameterRow{
			ID:          p.ID,
			Key:         p.Key,
			Type:        string(p.Type),
			TargetRules: len(p.TargetRules),
		})
	}
	return rows
}

type messageRow struct {
	ID        int64  `json:"id" yaml:"id"`
	Key       int64  `json:"key" yaml:"key"`
	Status    string `json:"status" yaml:"status"`
	Platforms string `json:"platforms" yaml:"platforms"`
	LayoutKey string `json:"layoutKey" yaml:"layout_key"`
}

func messageRows(messages []workspace.InAppMessage) []messageRow {
	rows := make([]messageRow, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, messageRow{
			ID:        m.ID,
			Key:       m.Key,
			Status:    string(m.Status),
			Platforms: strings.Join(m.Platforms, ","),
			LayoutKey: m.LayoutKey,
		})
	}
	return rows
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printExperimentTable(experiments []workspace.Experiment) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Key", "Type", "Status", "Variations")
	for _, row := range experimentRows(experiments) {
		table.Append(
			strconv.FormatInt(row.ID, 10),
			strconv.FormatInt(row.Key, 10),
			row.Type,
			row.Status,
			row.Variations,
		)
	}
	return table.Render()
}

func printParameterTable(params []workspace.RemoteConfigParameter) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Key", "Type", "Target Rules")
	for _, row := range parameterRows(params) {
		table.Append(
			strconv.FormatInt(row.ID, 10),
			row.Key,
			row.Type,
			strconv.Itoa(row.TargetRules),
		)
	}
	return table.Render()
}

func printMessageTable(messages []workspace.InAppMessage) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Key", "Status", "Platforms", "Layout")
	for _, row := range messageRows(messages) {
		table.Append(
			strconv.FormatInt(row.ID, 10),
			strconv.FormatInt(row.Key, 10),
			row.Status,
			row.Platforms,
			row.LayoutKey,
		)
	}
	return table.Render()
}
