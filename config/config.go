package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"
	StorageMemory  = "memory"
)

type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	DataDir         string `toml:"DataDir"`
	StorageBackend  string `toml:"StorageBackend"`
	GenesisFile     string `toml:"GenesisFile"`
	NetworkName     string `toml:"NetworkName"`
	BlockIntervalMs int64  `toml:"BlockIntervalMs"`

	Log       Log       `toml:"Log"`
	RPC       RPC       `toml:"RPC"`
	Polls     Polls     `toml:"Polls"`
	Pauses    Pauses    `toml:"Pauses"`
	Telemetry Telemetry `toml:"Telemetry"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:      ":8080",
		DataDir:         "./poll-data",
		StorageBackend:  StorageLevelDB,
		NetworkName:     "unit-local",
		BlockIntervalMs: 6000,
		Log: Log{
			Env:        "dev",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		RPC: RPC{
			AuthTokenEnv:       "POLLS_RPC_TOKEN",
			RateLimitPerMinute: 600,
			RateLimitBurst:     60,
			MaxBodyBytes:       1 << 20,
		},
		Polls: Polls{
			MaxContentRefBytes:  256,
			MaxClosuresPerBlock: 100,
		},
		Telemetry: Telemetry{
			ServiceName: "pollsd",
			Endpoint:    "localhost:4318",
			Insecure:    true,
		},
	}
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %q", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = defaults.NetworkName
	}
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if c.StorageBackend == "" {
		c.StorageBackend = defaults.StorageBackend
	}
	if c.BlockIntervalMs == 0 {
		c.BlockIntervalMs = defaults.BlockIntervalMs
	}
	if c.RPC.MaxBodyBytes == 0 {
		c.RPC.MaxBodyBytes = defaults.RPC.MaxBodyBytes
	}
	if c.Polls.MaxContentRefBytes == 0 {
		c.Polls.MaxContentRefBytes = defaults.Polls.MaxContentRefBytes
	}
	if c.Polls.MaxClosuresPerBlock == 0 {
		c.Polls.MaxClosuresPerBlock = defaults.Polls.MaxClosuresPerBlock
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = defaults.Telemetry.ServiceName
	}
	if strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		c.Telemetry.Endpoint = defaults.Telemetry.Endpoint
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
