// Package config holds mcpctl's kube-style context configuration: named
// gateway endpoints with their auth tokens, plus a current-context pointer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppName is the CLI binary name, also used for the config directory.
const AppName = "mcpctl"

// CfgFile is the config file path override, populated by the --config flag.
var CfgFile string

// Context is one named gateway connection.
type Context struct {
	ServerEndpoint string `yaml:"server"`
	AuthToken      string `yaml:"token,omitempty"`
}

// Config is the full CLI configuration.
type Config struct {
	CurrentContext string              `yaml:"current-context"`
	Contexts       map[string]*Context `yaml:"contexts"`
}

// GlobalConfig is the loaded configuration. InitConfig populates it.
var GlobalConfig = Config{Contexts: map[string]*Context{}}

func configPath() (string, error) {
	if CfgFile != "" {
		return CfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName, "config.yaml"), nil
}

// InitConfig loads the config file. A missing file is not an error; the
// config starts empty and is created on first save.
func InitConfig() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &GlobalConfig); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if GlobalConfig.Contexts == nil {
		GlobalConfig.Contexts = map[string]*Context{}
	}
	return nil
}

// Save writes the config file, creating its directory if needed. The file
// holds auth tokens, so it is not group or world readable.
func Save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(&GlobalConfig)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// GetCurrentContext returns the active context.
func GetCurrentContext() (*Context, error) {
	if GlobalConfig.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set; run '%s config use-context <name>'", AppName)
	}
	ctx, ok := GlobalConfig.Contexts[GlobalConfig.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("current context %q does not exist", GlobalConfig.CurrentContext)
	}
	return ctx, nil
}
