// Package config loads the Engine Configuration from a flat key file plus
// environment overrides, using Viper the way babelcloud/gbox's api-server does.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultExecTimeoutSeconds bounds the image's own TIMEOUT enforcement.
	DefaultExecTimeoutSeconds = 30
	// DefaultMaxConcurrency is the derived optimum the reference implementation hardcodes.
	DefaultMaxConcurrency = 6
	// DefaultOutputByteCap bounds captured stdout/stderr buffers.
	DefaultOutputByteCap = 1 << 20 // 1 MiB
	// ImagePrefix is prepended to the language tag to form an image name.
	ImagePrefix = "run-api"
)

// Config is the process-lifetime Engine Configuration. It is immutable after Load.
type Config struct {
	SocketPath    string
	APIVersion    string
	MaxRAMBytes   int64
	MaxCPUFraction float64
	MaxConcurrency int

	ExecTimeoutSeconds           int
	ContainerStopTimeoutSeconds int
	OutputByteCap                int

	RedisHost string
	RedisPort int
	SentryDSN string

	// LegacyMemoryParsing selects the documented divide-by-megabyte wart
	// instead of the corrected multiply-by-megabyte interpretation.
	LegacyMemoryParsing bool
}

// ExecTimeout returns the exec timeout as a time.Duration.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds) * time.Second
}

// ContainerStopTimeout returns the container stop grace window as a time.Duration.
func (c *Config) ContainerStopTimeout() time.Duration {
	return time.Duration(c.ContainerStopTimeoutSeconds) * time.Second
}

// CPUPeriod computes HostConfig.CpuPeriod = round(max_cpu * CpuQuota) per spec §6.
func (c *Config) CPUPeriod() int64 {
	const cpuQuota = 100000.0
	return int64(math.Round(c.MaxCPUFraction * cpuQuota))
}

// Load reads configuration from the given file path (or, if path is empty,
// from a runengine config file such as runengine.yaml in the working
// directory, when one exists) and environment variables prefixed RUNENGINE_,
// with "." and "-" mapped to "_" so app.max-container-ram becomes
// RUNENGINE_APP_MAX_CONTAINER_RAM.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("runengine")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("docker.socket", "/var/run/docker.sock")
	v.SetDefault("docker.api-version", "1.43")
	v.SetDefault("app.max-container-ram", "128m")
	v.SetDefault("app.max-container-cpu", 1.0)
	v.SetDefault("app.max-containers", DefaultMaxConcurrency)
	v.SetDefault("app.exec-timeout-seconds", DefaultExecTimeoutSeconds)
	v.SetDefault("app.output-byte-cap", DefaultOutputByteCap)
	v.SetDefault("app.legacy-memory-parsing", false)
	v.SetDefault("redis-rpc.host", "127.0.0.1")
	v.SetDefault("redis-rpc.port", 6379)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("runengine")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config %q: %w", v.ConfigFileUsed(), err)
		}
	}

	legacy := v.GetBool("app.legacy-memory-parsing")
	parse := ParseMemoryString
	if legacy {
		parse = LegacyParseMemoryString
	}

	ramBytes, err := parse(v.GetString("app.max-container-ram"))
	if err != nil {
		return nil, fmt.Errorf("app.max-container-ram: %w", err)
	}

	execTimeout := v.GetInt("app.exec-timeout-seconds")
	if execTimeout <= 0 {
		execTimeout = DefaultExecTimeoutSeconds
	}

	maxConcurrency := v.GetInt("app.max-containers")
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	outputCap := v.GetInt("app.output-byte-cap")
	if outputCap <= 0 {
		outputCap = DefaultOutputByteCap
	}

	cfg := &Config{
		SocketPath:                  v.GetString("docker.socket"),
		APIVersion:                  v.GetString("docker.api-version"),
		MaxRAMBytes:                 ramBytes,
		MaxCPUFraction:              v.GetFloat64("app.max-container-cpu"),
		MaxConcurrency:              maxConcurrency,
		ExecTimeoutSeconds:          execTimeout,
		ContainerStopTimeoutSeconds: execTimeout + 2,
		OutputByteCap:               outputCap,
		RedisHost:                   v.GetString("redis-rpc.host"),
		RedisPort:                   v.GetInt("redis-rpc.port"),
		SentryDSN:                   v.GetString("sentry.dsn"),
		LegacyMemoryParsing:         legacy,
	}

	return cfg, nil
}

// ParseMemoryString interprets "<N>m" as N * 1024 * 1024 bytes.
// This is the corrected interpretation; see LegacyParseMemoryString for the
// documented wart it replaces.
func ParseMemoryString(s string) (int64, error) {
	n, err := trimAndParseMegabytes(s)
	if err != nil {
		return 0, err
	}
	return n * 1024 * 1024, nil
}

// LegacyParseMemoryString reproduces the original config loader's behavior
// bug-for-bug: it strips a trailing "m" and divides by 1024*1024, which
// means "128m" becomes 0 bytes for any value under 1MB expressed this way.
// Kept only for environments that depend on the old (broken) sizing.
func LegacyParseMemoryString(s string) (int64, error) {
	n, err := trimAndParseMegabytes(s)
	if err != nil {
		return 0, err
	}
	return n / (1024 * 1024), nil
}

func trimAndParseMegabytes(s string) (int64, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(s), "m")
	var n int64
	if _, err := fmt.Sscanf(trimmed, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid memory string %q: %w", s, err)
	}
	return n, nil
}
