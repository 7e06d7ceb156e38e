package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetAllSettings returns a map of the dynamic settings currently loaded in
// memory, used by the admin settings endpoint.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":          Global.App.Version,
		"app_debug":            Global.App.Debug,
		"app_environment":      Global.App.Environment,
		"cache_enabled":        Global.Cache.Enabled,
		"cache_default_ttl":    Global.Cache.DefaultTTL.Seconds(),
		"cache_workflow_ttl":   Global.Cache.WorkflowTTL.Seconds(),
		"cache_template_ttl":   Global.Cache.TemplateTTL.Seconds(),
		"cache_lead_ttl":       Global.Cache.LeadTTL.Seconds(),
		"rate_limit_enabled":   Global.RateLimit.Enabled,
		"valkey_enabled":       Global.Valkey.Enabled,
		"metrics_log_interval": Global.Metrics.LogInterval.Seconds(),
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvSeconds reads an integer number of seconds and returns it as a
// time.Duration.
func getEnvSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}
