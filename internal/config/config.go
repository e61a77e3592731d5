package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ExecutorSimulator = "simulator"
	ExecutorRemote    = "remote"

	DefaultLLMKeyEnv = "ANTHROPIC_API_KEY"

	// DefaultFallbackAddress receives withdrawals when no wallet is
	// configured. Disable with wallet.allow_fallback: false.
	DefaultFallbackAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	EnableActions  string
	Timeout        string
	Retries        int
	LogLevel       string
	NoCache        bool
	Executor       string
	Wallet         string
}

type Settings struct {
	OutputMode      string
	SelectFields    []string
	ResultsOnly     bool
	EnableCommands  []string
	EnableActions   []string
	Timeout         time.Duration
	Retries         int
	LogLevel        string
	RegistryDir     string
	WalletAddress   string
	FallbackAddress string
	AllowFallback   bool
	KeySource       string
	LLMModel        string
	LLMMaxTokens    int64
	LLMAPIKey       string
	LLMBaseURL      string
	CacheEnabled    bool
	CacheTTL        time.Duration
	CachePath       string
	CacheLockPath   string
	ExecutorMode    string
	ExecutorURL     string
	ExecutorAPIKey  string
	JournalPath     string
	JournalLockPath string
}

type fileConfig struct {
	Output        string   `yaml:"output"`
	LogLevel      string   `yaml:"log_level"`
	Timeout       string   `yaml:"timeout"`
	Retries       *int     `yaml:"retries"`
	RegistryDir   string   `yaml:"registry_dir"`
	EnableActions []string `yaml:"enable_actions"`
	Wallet        struct {
		Address         string `yaml:"address"`
		FallbackAddress string `yaml:"fallback_address"`
		AllowFallback   *bool  `yaml:"allow_fallback"`
		KeySource       string `yaml:"key_source"`
	} `yaml:"wallet"`
	LLM struct {
		Model     string `yaml:"model"`
		MaxTokens *int64 `yaml:"max_tokens"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"llm"`
	Cache struct {
		Enabled  *bool  `yaml:"enabled"`
		TTL      string `yaml:"ttl"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Executor struct {
		Mode      string `yaml:"mode"`
		URL       string `yaml:"url"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"executor"`
	Journal struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"journal"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.ExecutorMode == ExecutorRemote && settings.ExecutorURL == "" {
		return Settings{}, fmt.Errorf("executor mode remote requires executor.url")
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	dir, err := defaultStateDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		Timeout:         30 * time.Second,
		Retries:         2,
		LogLevel:        "info",
		AllowFallback:   true,
		FallbackAddress: DefaultFallbackAddress,
		KeySource:       "auto",
		LLMMaxTokens:    1024,
		LLMAPIKey:       os.Getenv(DefaultLLMKeyEnv),
		CacheEnabled:    true,
		CacheTTL:        24 * time.Hour,
		CachePath:       filepath.Join(dir, "llm-cache.db"),
		CacheLockPath:   filepath.Join(dir, "llm-cache.lock"),
		ExecutorMode:    ExecutorSimulator,
		JournalPath:     filepath.Join(dir, "actions.db"),
		JournalLockPath: filepath.Join(dir, "actions.lock"),
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "sentinel", "config.yaml"), nil
}

func defaultStateDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "sentinel"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.RegistryDir != "" {
		settings.RegistryDir = cfg.RegistryDir
	}
	if len(cfg.EnableActions) > 0 {
		settings.EnableActions = trimAll(cfg.EnableActions)
	}

	if cfg.Wallet.Address != "" {
		settings.WalletAddress = cfg.Wallet.Address
	}
	if cfg.Wallet.FallbackAddress != "" {
		settings.FallbackAddress = cfg.Wallet.FallbackAddress
	}
	if cfg.Wallet.AllowFallback != nil {
		settings.AllowFallback = *cfg.Wallet.AllowFallback
	}
	if cfg.Wallet.KeySource != "" {
		settings.KeySource = strings.ToLower(cfg.Wallet.KeySource)
	}

	if cfg.LLM.Model != "" {
		settings.LLMModel = cfg.LLM.Model
	}
	if cfg.LLM.MaxTokens != nil {
		settings.LLMMaxTokens = *cfg.LLM.MaxTokens
	}
	if cfg.LLM.APIKey != "" {
		settings.LLMAPIKey = cfg.LLM.APIKey
	}
	if cfg.LLM.APIKeyEnv != "" {
		settings.LLMAPIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	}
	if cfg.LLM.BaseURL != "" {
		settings.LLMBaseURL = cfg.LLM.BaseURL
	}

	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.TTL != "" {
		d, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("config cache.ttl: %w", err)
		}
		settings.CacheTTL = d
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}

	if cfg.Executor.Mode != "" {
		settings.ExecutorMode = strings.ToLower(cfg.Executor.Mode)
	}
	if cfg.Executor.URL != "" {
		settings.ExecutorURL = cfg.Executor.URL
	}
	if cfg.Executor.APIKey != "" {
		settings.ExecutorAPIKey = cfg.Executor.APIKey
	}
	if cfg.Executor.APIKeyEnv != "" {
		settings.ExecutorAPIKey = os.Getenv(cfg.Executor.APIKeyEnv)
	}

	if cfg.Journal.Path != "" {
		settings.JournalPath = cfg.Journal.Path
	}
	if cfg.Journal.LockPath != "" {
		settings.JournalLockPath = cfg.Journal.LockPath
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("SENTINEL_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("SENTINEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("SENTINEL_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("SENTINEL_REGISTRY_DIR"); v != "" {
		settings.RegistryDir = v
	}
	if v := os.Getenv("SENTINEL_ENABLE_ACTIONS"); v != "" {
		settings.EnableActions = splitList(v)
	}
	if v := os.Getenv("SENTINEL_WALLET_ADDRESS"); v != "" {
		settings.WalletAddress = v
	}
	if v := os.Getenv("SENTINEL_FALLBACK_ADDRESS"); v != "" {
		settings.FallbackAddress = v
	}
	if v := os.Getenv("SENTINEL_ALLOW_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.AllowFallback = b
		}
	}
	if v := os.Getenv("SENTINEL_KEY_SOURCE"); v != "" {
		settings.KeySource = strings.ToLower(v)
	}
	if v := os.Getenv("SENTINEL_LLM_MODEL"); v != "" {
		settings.LLMModel = v
	}
	if v := os.Getenv("SENTINEL_LLM_API_KEY"); v != "" {
		settings.LLMAPIKey = v
	}
	if v := os.Getenv("SENTINEL_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("SENTINEL_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("SENTINEL_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("SENTINEL_EXECUTOR"); v != "" {
		settings.ExecutorMode = strings.ToLower(v)
	}
	if v := os.Getenv("SENTINEL_EXECUTOR_URL"); v != "" {
		settings.ExecutorURL = v
	}
	if v := os.Getenv("SENTINEL_EXECUTOR_API_KEY"); v != "" {
		settings.ExecutorAPIKey = v
	}
	if v := os.Getenv("SENTINEL_JOURNAL_PATH"); v != "" {
		settings.JournalPath = v
	}
	if v := os.Getenv("SENTINEL_JOURNAL_LOCK_PATH"); v != "" {
		settings.JournalLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = splitList(flags.Select)
	}
	settings.ResultsOnly = flags.ResultsOnly
	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitList(flags.EnableCommands)
	}
	if strings.TrimSpace(flags.EnableActions) != "" {
		settings.EnableActions = splitList(flags.EnableActions)
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.Executor != "" {
		settings.ExecutorMode = strings.ToLower(flags.Executor)
	}
	if flags.Wallet != "" {
		settings.WalletAddress = flags.Wallet
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	if settings.ExecutorMode != ExecutorSimulator && settings.ExecutorMode != ExecutorRemote {
		return fmt.Errorf("executor must be simulator or remote")
	}
	switch settings.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be debug, info, warn or error")
	}
	return nil
}

func splitList(raw string) []string {
	return trimAll(strings.Split(raw, ","))
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}
