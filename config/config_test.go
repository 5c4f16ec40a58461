package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, StorageLevelDB, cfg.StorageBackend)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "./data"
StorageBackend = "Bolt"
GenesisFile = "genesis.yaml"
BlockIntervalMs = 250

[Log]
Env = "prod"
File = "/var/log/pollsd.log"

[RPC]
AuthTokenEnv = "TOKEN"
RateLimitPerMinute = 120
RateLimitBurst = 10
TrustedProxies = ["10.0.0.1"]

[Polls]
MaxContentRefBytes = 64
MaxVotingPeriodBlocks = 1000

[Pauses]
Polls = true

[Telemetry]
Endpoint = "otel-collector:4318"
Insecure = false
Traces = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.RPCAddress)
	require.Equal(t, StorageBolt, cfg.StorageBackend)
	require.Equal(t, "genesis.yaml", cfg.GenesisFile)
	require.Equal(t, int64(250), cfg.BlockIntervalMs)
	require.Equal(t, "unit-local", cfg.NetworkName)
	require.Equal(t, "prod", cfg.Log.Env)
	require.Equal(t, "TOKEN", cfg.RPC.AuthTokenEnv)
	require.Equal(t, 120, cfg.RPC.RateLimitPerMinute)
	require.Equal(t, []string{"10.0.0.1"}, cfg.RPC.TrustedProxies)
	require.Equal(t, int64(1<<20), cfg.RPC.MaxBodyBytes)
	require.Equal(t, 64, cfg.Polls.MaxContentRefBytes)
	require.Equal(t, uint64(1000), cfg.Polls.MaxVotingPeriodBlocks)
	require.Equal(t, 100, cfg.Polls.MaxClosuresPerBlock)
	require.True(t, cfg.Pauses.Modules()["polls"])
	require.Equal(t, "pollsd", cfg.Telemetry.ServiceName)
	require.Equal(t, "otel-collector:4318", cfg.Telemetry.Endpoint)
	require.False(t, cfg.Telemetry.Insecure)
	require.True(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
	require.True(t, cfg.Telemetry.Enabled())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "ValidatorKey"))
}

func TestValidateConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown backend":     func(c *Config) { c.StorageBackend = "postgres" },
		"missing data dir":    func(c *Config) { c.DataDir = "" },
		"zero interval":       func(c *Config) { c.BlockIntervalMs = 0 },
		"burst missing":       func(c *Config) { c.RPC.RateLimitBurst = 0 },
		"oversized refs":      func(c *Config) { c.Polls.MaxContentRefBytes = MaxContentRefBytesLimit + 1 },
		"unknown log env":     func(c *Config) { c.Log.Env = "staging" },
		"missing rpc address": func(c *Config) { c.RPCAddress = " " },
		"telemetry endpoint":  func(c *Config) { c.Telemetry = Telemetry{ServiceName: "pollsd", Metrics: true} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, ValidateConfig(cfg))
		})
	}

	memory := Default()
	memory.StorageBackend = StorageMemory
	memory.DataDir = ""
	require.NoError(t, ValidateConfig(memory))

	quiet := Default()
	quiet.Telemetry.Endpoint = ""
	require.NoError(t, ValidateConfig(quiet))
}
