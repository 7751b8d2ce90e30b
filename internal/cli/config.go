package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the local flagshipctl configuration.
type Config struct {
	WorkspaceFile string `yaml:"workspace_file"`
	SDKKey        string `yaml:"sdk_key"`
	EventBaseURL  string `yaml:"event_base_url"`
	Platform      string `yaml:"platform"`
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".flagshipctl", "config.yaml"), nil
}

// LoadConfig loads the configuration from file. A missing file yields
// defaults.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Platform: "ANDROID"}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Platform == "" {
		cfg.Platform = "ANDROID"
	}
	return &cfg, nil
}

// SaveConfig saves the configuration to file.
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ResolveWorkspaceFile picks the workspace file from the flag, the
// FLAGSHIP_WORKSPACE_FILE environment variable, or the config file, in that
// order.
func ResolveWorkspaceFile(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("FLAGSHIP_WORKSPACE_FILE"); env != "" {
		return env, nil
	}
	cfg, err := LoadConfig()
	if err != nil {
		return "", err
	}
	if cfg.WorkspaceFile == "" {
		return "", fmt.Errorf("no workspace file configured: pass --workspace, set FLAGSHIP_WORKSPACE_FILE or add workspace_file to the config")
	}
	return cfg.WorkspaceFile, nil
}
