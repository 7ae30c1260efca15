// Package settings loads and snapshots the bot configuration.
package settings

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/kuyari/pkg/permissions"
)

const (
	DefaultMaxText     = 100000
	DefaultMaxImages   = 5
	DefaultMaxMessages = 25
)

// ProviderConfig is one OpenAI-compatible backend endpoint. Media providers
// (Stability) reuse the same shape.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

// ModelParams are passthrough sampling parameters for one model entry.
type ModelParams struct {
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP        *float64 `mapstructure:"top_p" yaml:"top_p"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// Config is the full bot configuration. Models are keyed "provider/model",
// optionally suffixed ":vision" to force image support; engines map Stability
// engine names to their API paths.
type Config struct {
	ClientID      string `mapstructure:"client_id" yaml:"client_id"`
	StatusMessage string `mapstructure:"status_message" yaml:"status_message"`

	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Models    map[string]ModelParams    `mapstructure:"models" yaml:"models"`
	Engines   map[string]string         `mapstructure:"engines" yaml:"engines"`

	DefaultModel  string `mapstructure:"default_model" yaml:"default_model"`
	DefaultEngine string `mapstructure:"default_engine" yaml:"default_engine"`

	Permissions permissions.Config `mapstructure:"permissions" yaml:"permissions"`
	AllowDMs    bool               `mapstructure:"allow_dms" yaml:"allow_dms"`

	AllowPassiveChat       bool    `mapstructure:"allow_passive_chat" yaml:"allow_passive_chat"`
	PassiveChatProbability float64 `mapstructure:"passive_chat_probability" yaml:"passive_chat_probability"`

	MaxText     int `mapstructure:"max_text" yaml:"max_text"`
	MaxImages   int `mapstructure:"max_images" yaml:"max_images"`
	MaxMessages int `mapstructure:"max_messages" yaml:"max_messages"`

	UsePlainResponses bool   `mapstructure:"use_plain_responses" yaml:"use_plain_responses"`
	SystemPrompt      string `mapstructure:"system_prompt" yaml:"system_prompt"`

	GoogleAPIKey string `mapstructure:"google_api_key" yaml:"google_api_key"`
	GoogleCSEID  string `mapstructure:"google_cse_id" yaml:"google_cse_id"`
}

// Load reads the configuration file at path. The file is re-read on every
// call so edits take effect without a restart.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("allow_dms", true)
	v.SetDefault("max_text", DefaultMaxText)
	v.SetDefault("max_images", DefaultMaxImages)
	v.SetDefault("max_messages", DefaultMaxMessages)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return cfg, nil
}

// Dump renders the configuration as YAML with API keys redacted.
func (c *Config) Dump() (string, error) {
	redacted := *c
	redacted.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for name, provider := range c.Providers {
		if provider.APIKey != "" {
			provider.APIKey = "<redacted>"
		}
		redacted.Providers[name] = provider
	}
	if redacted.GoogleAPIKey != "" {
		redacted.GoogleAPIKey = "<redacted>"
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal config")
	}
	return string(out), nil
}

// FirstModel returns the configured default model, falling back to the first
// model key in sorted order.
func (c *Config) FirstModel() string {
	if c.DefaultModel != "" {
		return c.DefaultModel
	}
	return firstKey(keysOf(c.Models))
}

// FirstEngine returns the configured default engine, falling back to the
// first engine key in sorted order.
func (c *Config) FirstEngine() string {
	if c.DefaultEngine != "" {
		return c.DefaultEngine
	}
	return firstKey(keysOf(c.Engines))
}

// ModelNames returns all configured model keys, sorted.
func (c *Config) ModelNames() []string {
	names := keysOf(c.Models)
	sort.Strings(names)
	return names
}

// EngineNames returns all configured engine keys, sorted.
func (c *Config) EngineNames() []string {
	names := keysOf(c.Engines)
	sort.Strings(names)
	return names
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func firstKey(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}

// VisionModelTags are substrings of model names known to accept image input.
var VisionModelTags = []string{
	"claude", "gemini", "gemma", "gpt-4", "grok-4", "llama", "llava",
	"mistral", "o3", "o4", "vision", "vl",
}

// ProvidersSupportingUsernames lists providers that accept a per-message
// author name field.
var ProvidersSupportingUsernames = []string{"openai", "x-ai"}

// IsVisionModel reports whether the "provider/model" key names a model that
// accepts images.
func IsVisionModel(providerSlashModel string) bool {
	lower := strings.ToLower(providerSlashModel)
	for _, tag := range VisionModelTags {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// SupportsUsernames reports whether the provider of the "provider/model" key
// accepts author name fields.
func SupportsUsernames(providerSlashModel string) bool {
	lower := strings.ToLower(providerSlashModel)
	for _, provider := range ProvidersSupportingUsernames {
		if strings.Contains(lower, provider) {
			return true
		}
	}
	return false
}

// SplitModel splits a "provider/model" key into its parts, dropping a
// trailing ":vision" tag first.
func SplitModel(providerSlashModel string) (provider string, model string, err error) {
	trimmed := strings.TrimSuffix(providerSlashModel, ":vision")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("invalid model key %q, expected provider/model", providerSlashModel)
	}
	return parts[0], parts[1], nil
}
