// Package config loads icpcd/icpcctl configuration the same way the
// teacher's CLI does: a single viper singleton, config.yaml discovered by
// walking up from the working directory, and environment variables bound
// with automatic precedence over the file.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/untoldecay/icpc/internal/debug"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Should be called
// once at application startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// 1. Walk up from CWD to find project .icpc/config.yaml, so commands
	// work from any subdirectory of a workspace.
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".icpc", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/icpc/config.yaml).
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "icpc", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory (~/.icpc/config.yaml).
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".icpc", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// Environment variables take precedence over the config file, e.g.
	// ICPC_LOG_LEVEL, ICPC_RETENTION_DAYS, ICPC_NO_DAEMON.
	v.SetEnvPrefix("ICPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Daemon/CLI behavior.
	v.SetDefault("json", false)
	v.SetDefault("no-daemon", false)
	v.SetDefault("log-level", "info")
	v.SetDefault("db", "")
	v.SetDefault("actor", "")
	v.SetDefault("lock-timeout", "30s")

	// Source Adapters.
	v.SetDefault("workspace-roots", []string{})
	v.SetDefault("editor-db-path", "")
	v.SetDefault("history-files", []string{})
	v.SetDefault("watcher.fallback-poll-interval", "5s")
	v.SetDefault("clipboard.enabled", true)
	v.SetDefault("clipboard.poll-interval", "2s")
	v.SetDefault("status.poll-interval", "1s")

	// Sync Scheduler.
	v.SetDefault("sync-interval-ms", 30000)
	v.SetDefault("sync.background-timeout", "10s")
	v.SetDefault("sync.control-timeout", "15s")

	// Correlation Engine.
	v.SetDefault("correlation.window-back-ms", 5*60*1000)
	v.SetDefault("correlation.window-forward-ms", 30*1000)
	v.SetDefault("correlation.high-threshold", 0.75)
	v.SetDefault("correlation.medium-threshold", 0.45)
	v.SetDefault("correlation.low-threshold", 0.2)

	// Persistence Store.
	v.SetDefault("retention-days", 30)
	v.SetDefault("journal.enabled", true)

	// PII/secret redaction.
	v.SetDefault("pii-redaction.enabled", true)
	v.SetDefault("pii-redaction.entropy-threshold", 4.5)

	// Optional low-confidence Ollama enrichment fallback.
	v.SetDefault("enrichment.enabled", false)
	v.SetDefault("enrichment.ollama-model", "llama3.2:3b")

	// Optional external script hooks under <data-dir>/hooks.
	v.SetDefault("hooks.enabled", false)

	// Optional entity/relationship extraction over historical-mining commit
	// messages; reuses the Ollama model configured for enrichment when both
	// are enabled.
	v.SetDefault("event-extraction.enabled", false)

	// Optional conversation compaction via Claude Haiku ahead of retention
	// cleanup; needs ANTHROPIC_API_KEY (or compaction.api-key) set to do
	// anything.
	v.SetDefault("compaction.enabled", false)
	v.SetDefault("compaction.model", "claude-3-5-haiku-20241022")
	v.SetDefault("compaction.api-key", "")

	// Identity, shared with GetIdentity's fallback chain below.
	_ = v.BindEnv("identity", "ICPC_IDENTITY")
	v.SetDefault("identity", "")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debug.Logf("Debug: loaded config from %s\n", v.ConfigFileUsed())
	} else {
		debug.Logf("Debug: no config.yaml found; using defaults and environment variables\n")
	}

	return nil
}

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault    ConfigSource = "default"
	SourceConfigFile ConfigSource = "config_file"
	SourceEnvVar     ConfigSource = "env_var"
	SourceFlag       ConfigSource = "flag"
)

// ConfigOverride represents a detected configuration override.
type ConfigOverride struct {
	Key            string
	EffectiveValue interface{}
	OverriddenBy   ConfigSource
	OriginalSource ConfigSource
	OriginalValue  interface{}
}

// GetValueSource returns the source of a configuration value. Priority
// (highest to lowest): env var > config file > default. Flag overrides
// are handled separately by the caller since viper doesn't know about
// cobra flags.
func GetValueSource(key string) ConfigSource {
	if v == nil {
		return SourceDefault
	}

	envKey := "ICPC_" + strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(key, "-", "_"), ".", "_"))
	if os.Getenv(envKey) != "" {
		return SourceEnvVar
	}
	if v.InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}

// CheckOverrides checks for configuration overrides and returns a list of
// detected overrides, so a verbose run can report them. flagOverrides maps
// key -> (flagValue, flagWasSet) for flags the caller explicitly set.
func CheckOverrides(flagOverrides map[string]struct {
	Value  interface{}
	WasSet bool
}) []ConfigOverride {
	var overrides []ConfigOverride

	for key, flagInfo := range flagOverrides {
		if !flagInfo.WasSet {
			continue
		}
		source := GetValueSource(key)
		if source != SourceConfigFile && source != SourceEnvVar {
			continue
		}
		var originalValue interface{}
		switch flagInfo.Value.(type) {
		case bool:
			originalValue = GetBool(key)
		case string:
			originalValue = GetString(key)
		case int:
			originalValue = GetInt(key)
		default:
			originalValue = flagInfo.Value
		}
		overrides = append(overrides, ConfigOverride{
			Key:            key,
			EffectiveValue: flagInfo.Value,
			OverriddenBy:   SourceFlag,
			OriginalSource: source,
			OriginalValue:  originalValue,
		})
	}

	if v != nil {
		for _, key := range v.AllKeys() {
			if GetValueSource(key) == SourceEnvVar && v.InConfig(key) {
				overrides = append(overrides, ConfigOverride{
					Key:            key,
					EffectiveValue: v.Get(key),
					OverriddenBy:   SourceEnvVar,
					OriginalSource: SourceConfigFile,
				})
			}
		}
	}

	return overrides
}

// LogOverride logs a message about a configuration override; the caller
// guards this on verbose mode.
func LogOverride(override ConfigOverride) {
	var sourceDesc string
	switch override.OriginalSource {
	case SourceConfigFile:
		sourceDesc = "config file"
	case SourceEnvVar:
		sourceDesc = "environment variable"
	default:
		sourceDesc = string(override.OriginalSource)
	}

	var overrideDesc string
	switch override.OverriddenBy {
	case SourceFlag:
		overrideDesc = "command-line flag"
	case SourceEnvVar:
		overrideDesc = "environment variable"
	default:
		overrideDesc = string(override.OverriddenBy)
	}

	fmt.Fprintf(os.Stderr, "Config: %s overridden by %s (was: %v from %s, now: %v)\n",
		override.Key, overrideDesc, override.OriginalValue, sourceDesc, override.EffectiveValue)
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a float configuration value (correlation thresholds).
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value, used by tests and by flag-precedence
// wiring in cmd/icpcd and cmd/icpcctl.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// GetStringSlice retrieves a string slice configuration value.
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	return v.GetStringSlice(key)
}

// GetStringMapString retrieves a map[string]string configuration value.
func GetStringMapString(key string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v.GetStringMapString(key)
}

// GetIdentity resolves the user's identity for display purposes.
// Priority chain:
//  1. flagValue (if non-empty, from --identity flag)
//  2. ICPC_IDENTITY env var / config.yaml identity field (via viper)
//  3. git config user.name
//  4. hostname
func GetIdentity(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if identity := GetString("identity"); identity != "" {
		return identity
	}
	cmd := exec.Command("git", "config", "user.name")
	if output, err := cmd.Output(); err == nil {
		if gitUser := strings.TrimSpace(string(output)); gitUser != "" {
			return gitUser
		}
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "unknown"
}
