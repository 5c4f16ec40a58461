package config

// Log controls the structured logger.
type Log struct {
	Env string `toml:"Env"`
	// File enables rotation into the given path in addition to stdout.
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RPC captures the JSON-RPC listener settings.
type RPC struct {
	AuthTokenEnv       string   `toml:"AuthTokenEnv"`
	RateLimitPerMinute int      `toml:"RateLimitPerMinute"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
	MaxBodyBytes       int64    `toml:"MaxBodyBytes"`
	// TrustedProxies are peer IPs allowed to set X-Forwarded-For.
	TrustedProxies     []string `toml:"TrustedProxies"`
}

// Polls bounds poll admission.
type Polls struct {
	MaxContentRefBytes    int    `toml:"MaxContentRefBytes"`
	MaxVotingPeriodBlocks uint64 `toml:"MaxVotingPeriodBlocks"`
	MaxClosuresPerBlock   int    `toml:"MaxClosuresPerBlock"`
}

type Pauses struct {
	Polls bool `toml:"Polls"`
}

// Modules returns the lower-cased names of paused modules.
func (p Pauses) Modules() map[string]bool {
	out := map[string]bool{}
	if p.Polls {
		out["polls"] = true
	}
	return out
}

// Telemetry configures the OTLP/HTTP exporters. Both exporters are off by
// default.
type Telemetry struct {
	ServiceName string `toml:"ServiceName"`
	Endpoint    string `toml:"Endpoint"`
	Insecure    bool   `toml:"Insecure"`
	// Headers uses the OTEL_EXPORTER_OTLP_HEADERS form: key=value,foo=bar.
	Headers     string `toml:"Headers"`
	Traces      bool   `toml:"Traces"`
	Metrics     bool   `toml:"Metrics"`
}

// Enabled reports whether any exporter is switched on.
func (t Telemetry) Enabled() bool { return t.Traces || t.Metrics }
