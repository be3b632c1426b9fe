// Package config loads the gateway's environment-driven configuration,
// with an optional YAML file overlay and live reload of the fields that
// are safe to change without a restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SessionStoreType selects a Store implementation (internal/session).
type SessionStoreType string

const (
	SessionStoreMemory     SessionStoreType = "memory"
	SessionStoreFile       SessionStoreType = "file"
	SessionStoreMinimemory SessionStoreType = "minimemory"
)

// LlamaCppConfig holds the llama_cpp provider's knobs. Unlike the other
// providers, llama_cpp has no _HOST env var in the spec's exact-names list —
// it is addressed at a fixed local default and is "misconfigured" (502)
// purely on a missing model, mirroring a locally-spawned inference server
// rather than a remote peer.
type LlamaCppConfig struct {
	Host            string `yaml:"host"`
	Model           string `yaml:"model"`
	NBatch          int    `yaml:"n_batch"`
	NUbatch         int    `yaml:"n_ubatch"`
	FlashAttn       bool   `yaml:"flash_attn"`
	UnloadAfterChat bool   `yaml:"unload_after_chat"`
}

// SessionStoreConfig configures the pluggable session store back-end.
type SessionStoreConfig struct {
	Type      SessionStoreType `yaml:"type"`
	Path      string           `yaml:"path"` // file-backed: RUNTIME_SESSION_STORE
	Endpoint  string           `yaml:"endpoint"`
	Password  string           `yaml:"password"`
	DB        int              `yaml:"db"`
	Namespace string           `yaml:"namespace"`
}

// Config is the gateway's complete process configuration, assembled from
// defaults, an optional YAML file, and environment variable overrides —
// in that precedence order, matching the teacher's
// LoadAgentConfigWithEnvOverrides layering.
type Config struct {
	ListenHost      string             `yaml:"listen_host"`
	ListenPort      int                `yaml:"listen_port"`
	DefaultProvider string             `yaml:"default_provider"`
	WorkspaceRoot   string             `yaml:"workspace_root"`
	MCPHosts        []string           `yaml:"mcp_hosts"`
	SessionStore    SessionStoreConfig `yaml:"session_store"`

	LlamaCpp     LlamaCppConfig `yaml:"llama_cpp"`
	LMDeployHost string         `yaml:"lmdeploy_host"`
	MNNHost      string         `yaml:"mnn_host"`
	OllamaHost   string         `yaml:"ollama_host"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration's zero-value-safe starting point,
// overridden by file and environment next.
func Default() *Config {
	return &Config{
		ListenHost:      "127.0.0.1",
		ListenPort:      8080,
		DefaultProvider: "llama_cpp",
		WorkspaceRoot:   ".",
		SessionStore: SessionStoreConfig{
			Type:      SessionStoreMemory,
			Namespace: "default",
		},
		LlamaCpp: LlamaCppConfig{
			Host: "http://127.0.0.1:8081",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then an optional
// RUNTIME_CONFIG_FILE YAML overlay, then environment variable overrides,
// validating once on the result — mirroring
// LoadAgentConfigWithEnvOverrides's layering in the teacher.
func Load(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path := getenv("RUNTIME_CONFIG_FILE"); path != "" {
		if err := loadYAMLOverlay(cfg, path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	applyEnvOverrides(cfg, getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func loadYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv("RUNTIME_LISTEN_HOST"); v != "" {
		cfg.ListenHost = v
	}
	if v := getenv("RUNTIME_LISTEN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = p
		}
	}
	if v := getenv("RUNTIME_PROVIDER"); v != "" {
		cfg.DefaultProvider = v
	}
	if v := getenv("RUNTIME_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := getenv("MCP_HOSTS"); v != "" {
		cfg.MCPHosts = splitCSV(v)
	}
	if v := getenv("RUNTIME_SESSION_STORE"); v != "" {
		cfg.SessionStore.Path = v
		cfg.SessionStore.Type = SessionStoreFile
	}
	if v := getenv("RUNTIME_SESSION_STORE_TYPE"); v != "" {
		cfg.SessionStore.Type = SessionStoreType(v)
	}
	if v := getenv("RUNTIME_SESSION_STORE_ENDPOINT"); v != "" {
		cfg.SessionStore.Endpoint = v
	}
	if v := getenv("RUNTIME_SESSION_STORE_PASSWORD"); v != "" {
		cfg.SessionStore.Password = v
	}
	if v := getenv("RUNTIME_SESSION_STORE_DB"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.SessionStore.DB = d
		}
	}
	if v := getenv("RUNTIME_SESSION_STORE_NAMESPACE"); v != "" {
		cfg.SessionStore.Namespace = v
	}
	if v := getenv("LLAMA_CPP_MODEL"); v != "" {
		cfg.LlamaCpp.Model = v
	}
	if v := getenv("LLAMA_CPP_N_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LlamaCpp.NBatch = n
		}
	}
	if v := getenv("LLAMA_CPP_N_UBATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LlamaCpp.NUbatch = n
		}
	}
	if v := getenv("LLAMA_CPP_FLASH_ATTN"); v != "" {
		cfg.LlamaCpp.FlashAttn = parseBool(v)
	}
	if v := getenv("LLAMA_CPP_UNLOAD_AFTER_CHAT"); v != "" {
		cfg.LlamaCpp.UnloadAfterChat = parseBool(v)
	}
	if v := getenv("LMDEPLOY_HOST"); v != "" {
		cfg.LMDeployHost = v
	}
	if v := getenv("MNN_HOST"); v != "" {
		cfg.MNNHost = v
	}
	if v := getenv("OLLAMA_HOST"); v != "" {
		cfg.OllamaHost = v
	}
	if v := getenv("RUNTIME_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// Validate rejects configurations that would leave the gateway unable to
// start (spec §6: non-zero exit on configuration failure).
func (c *Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen port %d out of range", c.ListenPort)
	}
	if c.DefaultProvider == "" {
		return fmt.Errorf("default provider must not be empty")
	}
	switch c.SessionStore.Type {
	case SessionStoreMemory, SessionStoreFile, SessionStoreMinimemory:
	default:
		return fmt.Errorf("unknown session store type %q", c.SessionStore.Type)
	}
	if c.SessionStore.Type == SessionStoreFile && c.SessionStore.Path == "" {
		return fmt.Errorf("file-backed session store requires RUNTIME_SESSION_STORE path")
	}
	if c.SessionStore.Type == SessionStoreMinimemory && c.SessionStore.Endpoint == "" {
		return fmt.Errorf("networked session store requires RUNTIME_SESSION_STORE_ENDPOINT")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
