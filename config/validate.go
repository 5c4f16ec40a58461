package config

import (
	"fmt"
	"strings"
)

var (
	MaxContentRefBytesLimit = 4096
)

func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("rpc: address required")
	}
	switch c.StorageBackend {
	case StorageLevelDB, StorageBolt:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("storage: %s backend requires DataDir", c.StorageBackend)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage: unknown backend %q", c.StorageBackend)
	}
	if c.BlockIntervalMs <= 0 {
		return fmt.Errorf("blocks: interval_ms <= 0")
	}
	if c.RPC.RateLimitPerMinute < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerMinute > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: burst required when rate limiting")
	}
	if c.RPC.MaxBodyBytes <= 0 {
		return fmt.Errorf("rpc: max_body_bytes <= 0")
	}
	if c.Polls.MaxContentRefBytes <= 0 || c.Polls.MaxContentRefBytes > MaxContentRefBytesLimit {
		return fmt.Errorf("polls: max_content_ref_bytes must be within 1..%d", MaxContentRefBytesLimit)
	}
	if c.Polls.MaxClosuresPerBlock <= 0 {
		return fmt.Errorf("polls: max_closures_per_block <= 0")
	}
	if c.Telemetry.Enabled() {
		if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
			return fmt.Errorf("telemetry: service name required")
		}
		if strings.TrimSpace(c.Telemetry.Endpoint) == "" {
			return fmt.Errorf("telemetry: endpoint required")
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Env)) {
	case "", "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("log: unknown env %q", c.Log.Env)
	}
	return nil
}
