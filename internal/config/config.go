package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Mohsinsiddi/w3sale/internal/rpc"
)

const (
	defaultListenAddr = ":8081"
	defaultInterval   = 5
	defaultLogLevel   = "info"

	configFile  = "config.json"
	walletsFile = "wallets.json"
	stateFile   = "state.json"
	journalFile = "journal.db"
)

// Load reads config from dir (or creates defaults). dir defaults to ~/.w3sale.
// Environment overrides are applied on top of the file.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3sale")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	cfg := defaults(dir)

	path := filepath.Join(dir, configFile)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.configDir = dir
	if cfg.CustomRPCs == nil {
		cfg.CustomRPCs = make(map[string][]string)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	return saveJSON(filepath.Join(c.configDir, configFile), c)
}

// Set updates a single field by its JSON key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "default_wallet":
		c.DefaultWallet = value
	case "listen_addr":
		c.ListenAddr = value
	case "log_level":
		c.LogLevel = value
	case "state_file":
		c.StateFile = value
	case "journal_file":
		c.JournalFile = value
	case "rpc_strategy":
		if _, err := rpc.ParseStrategy(value); err != nil {
			return err
		}
		c.RPCStrategy = value
	case "watch_interval":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("watch_interval must be a positive number of seconds")
		}
		c.WatchInterval = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// AddRPC adds a custom RPC URL for a network.
func (c *Config) AddRPC(network, url string) error {
	if c.CustomRPCs == nil {
		c.CustomRPCs = make(map[string][]string)
	}
	if slices.Contains(c.CustomRPCs[network], url) {
		return fmt.Errorf("RPC %s already exists for network %s", url, network)
	}
	c.CustomRPCs[network] = append(c.CustomRPCs[network], url)
	return nil
}

// RemoveRPC removes a custom RPC URL for a network.
func (c *Config) RemoveRPC(network, url string) error {
	rpcs := c.CustomRPCs[network]
	idx := slices.Index(rpcs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found for network %s", url, network)
	}
	c.CustomRPCs[network] = slices.Delete(rpcs, idx, idx+1)
	return nil
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// WalletsPath is where named identities are stored.
func (c *Config) WalletsPath() string {
	return filepath.Join(c.configDir, walletsFile)
}

// StatePath resolves StateFile against the config dir.
func (c *Config) StatePath() string {
	return c.resolve(c.StateFile)
}

// JournalPath resolves JournalFile against the config dir.
func (c *Config) JournalPath() string {
	return c.resolve(c.JournalFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.configDir, name)
}

// --- helpers ---

func defaults(dir string) *Config {
	return &Config{
		StateFile:     stateFile,
		JournalFile:   journalFile,
		ListenAddr:    defaultListenAddr,
		WatchInterval: defaultInterval,
		LogLevel:      defaultLogLevel,
		CustomRPCs:    make(map[string][]string),
		configDir:     dir,
	}
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
