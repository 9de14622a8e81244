package config

import (
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the application configuration read from config.json.
type Config struct {
	// SandboxRoot is the only directory tasks may read from or write to.
	SandboxRoot string `json:"sandbox_root"`
	// Channels maps a channel identifier ("web", "telegram") to its raw
	// configuration. Absent channels are not started.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// LLM is the array of inference provider groups. Optional; tasks that
	// need a model fail with HandlerExecutionError when it is missing.
	LLM jsoniter.RawMessage `json:"llm"`
	// Datagen configures the data generation task.
	Datagen DatagenConfig `json:"datagen"`
	// Formatter configures the markdown formatting task.
	Formatter FormatterConfig `json:"formatter"`
}

// DatagenConfig describes where the generator script comes from and how
// it is run. Commands are argv vectors, never shell strings.
type DatagenConfig struct {
	ScriptURL string `json:"script_url"`
	// InstallCommand runs before the download. An explicit empty list skips it.
	InstallCommand []string `json:"install_command"`
	// RunCommand is the prefix; the script path and email are appended.
	RunCommand []string `json:"run_command"`
}

// FormatterConfig holds the formatter argv prefix; the target path is appended.
type FormatterConfig struct {
	Command []string `json:"command"`
}

const (
	DefaultScriptURL = "https://raw.githubusercontent.com/sanand0/tools-in-data-science-public/tds-2025-01/project-1/datagen.py"
	DefaultPrettier  = "prettier@3.4.2"
)

// DefaultConfig returns the application defaults that config.json overrides.
func DefaultConfig() *Config {
	return &Config{
		Channels: map[string]jsoniter.RawMessage{},
		Datagen: DatagenConfig{
			ScriptURL:      DefaultScriptURL,
			InstallCommand: []string{"pip", "install", "--user", "uv"},
			RunCommand:     []string{"uv", "run"},
		},
		Formatter: FormatterConfig{
			Command: []string{"npx", DefaultPrettier, "--write"},
		},
	}
}

// Validate ensures the configuration contains all mandatory fields.
func (c *Config) Validate() error {
	if c.SandboxRoot == "" {
		return errors.New("mandatory 'sandbox_root' is missing or empty")
	}
	if c.Datagen.ScriptURL == "" {
		return errors.New("'datagen.script_url' must not be empty")
	}
	if len(c.Datagen.RunCommand) == 0 {
		return errors.New("'datagen.run_command' must not be empty")
	}
	if len(c.Formatter.Command) == 0 {
		return errors.New("'formatter.command' must not be empty")
	}
	return nil
}

// SystemConfig defines engine-level technical parameters read from
// system.json. Every field has a default, so the file is optional.
type SystemConfig struct {
	// MaxRetries is the number of attempts per inference provider on a
	// transient error. 1 means a single attempt.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the base delay between attempts, growing linearly.
	RetryDelayMs int `json:"retry_delay_ms"`
	// LLMTimeoutMs bounds a single inference call.
	LLMTimeoutMs int `json:"llm_timeout_ms"`
	// TaskTimeoutMs is the deadline the gateway attaches to each task.
	// Zero disables it.
	TaskTimeoutMs int `json:"task_timeout_ms"`
	// DownloadTimeoutMs bounds HTTP downloads (datagen script, telegram files).
	DownloadTimeoutMs int `json:"download_timeout_ms"`
	// OllamaDefaultURL is used by ollama groups without a base_url.
	OllamaDefaultURL string `json:"ollama_default_url"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
	// TelegramMessageLimit is the maximum character count of one Telegram
	// message; longer replies are split.
	TelegramMessageLimit int `json:"telegram_message_limit"`
}

// DefaultSystemConfig returns the values used when system.json is missing
// or corrupt, so the service can always start.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		MaxRetries:           1,
		RetryDelayMs:         500,
		LLMTimeoutMs:         60000,
		TaskTimeoutMs:        300000,
		DownloadTimeoutMs:    30000,
		OllamaDefaultURL:     "http://localhost:11434",
		LogLevel:             "info",
		TelegramMessageLimit: 4000,
	}
}

// Load reads config.json from appPath and system.json from sysPath.
// The application file is mandatory; the system file falls back to defaults.
func Load(appPath, sysPath string) (*Config, *SystemConfig, error) {
	cfg, err := LoadAppConfig(appPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, LoadSystemConfig(sysPath), nil
}

// LoadAppConfig reads, defaults and validates config.json.
func LoadAppConfig(path string) (*Config, error) {
	cfg, err := ReadAppConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadAppConfig reads and defaults config.json without validating it, so
// callers can apply command line overrides first.
func ReadAppConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file '%s' not found. please create one", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Channels == nil {
		cfg.Channels = map[string]jsoniter.RawMessage{}
	}
	return cfg, nil
}

// LoadSystemConfig attempts to load system settings, returns defaults if it fails
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	parsed := DefaultSystemConfig()
	if err := json.Unmarshal(data, parsed); err != nil {
		return cfg
	}
	if parsed.MaxRetries < 1 {
		parsed.MaxRetries = 1
	}
	return parsed
}
