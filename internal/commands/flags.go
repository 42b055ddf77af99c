// Package commands implements the corkboard CLI: an operator-facing
// consumer of the collaboration service, standing in for the network
// transport layer.
package commands

import (
	"os"
	"path/filepath"

	"github.com/hay-kot/corkboard/internal/board"
	"github.com/hay-kot/corkboard/internal/core/config"
	"github.com/hay-kot/corkboard/internal/data/stores"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	DataDir    string

	// Caller identity for mutating commands. The CLI is its own auth
	// collaborator: whatever is supplied here is trusted.
	User     string
	Username string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config

	// Service is the collaboration service for board operations
	Service *board.Service

	// Selector owns the durable-vs-transient backend decision
	Selector *stores.Selector
}

// Identity returns the caller identity, defaulting the display name to
// the user id.
func (f *Flags) Identity() board.Identity {
	username := f.Username
	if username == "" {
		username = f.User
	}
	return board.Identity{UserID: f.User, Username: username}
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "corkboard", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "corkboard")
}
