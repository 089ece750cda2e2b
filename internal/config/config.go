package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Generate GenerateConfig
	Worker   WorkerConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type StorageConfig struct {
	DataDir string
}

type GenerateConfig struct {
	QualityThreshold float64
	CommitAttempts   int
}

type WorkerConfig struct {
	PollInterval string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com",
			Model:   "gpt-4o-mini",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Generate: GenerateConfig{
			QualityThreshold: 0.5,
			CommitAttempts:   3,
		},
		Worker: WorkerConfig{
			PollInterval: "500ms",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.bureauhq.bureau) and
// secrets fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/bureau/config.json
// and secrets live in $XDG_DATA_HOME/bureau/secrets.json.
//
// Environment variables (BUREAU_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for the API key if still empty.
	if cfg.LLM.APIKey == "" {
		if key, err := kc.Get(keychainService, "llm_api_key"); err == nil && key != "" {
			cfg.LLM.APIKey = strings.TrimSpace(key)
		}
	}

	if cfg.LLM.APIKey == "" {
		msg := "missing required config: LLM API key. " +
			"Set it via environment variable BUREAU_LLM_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}
