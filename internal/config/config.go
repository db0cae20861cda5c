package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dtran2108/collabo-speak/internal/persona"
)

// EnvPrefix is the namespace prefix for all Collabo Speak environment variables.
const EnvPrefix = "COLLABO_SPEAK_"

// Config holds all application configuration. Secrets (API keys, the
// backend bearer token) are loaded exclusively from environment variables
// and never appear in the config file.
type Config struct {
	SignalingURL  string `yaml:"signaling_url"`
	EvaluationURL string `yaml:"evaluation_url"`
	BlobUploadURL string `yaml:"blob_upload_url"`
	RecordsURL    string `yaml:"records_url"`

	AgentID   string `yaml:"agent_id"`
	UserID    string `yaml:"user_id"`
	Mode      string `yaml:"mode"`
	WarnAfter string `yaml:"warn_after"`

	ListenAddr     string `yaml:"listen_addr"`
	DBPath         string `yaml:"db_path"`
	TranscriptsDir string `yaml:"transcripts_dir"`
	MicSampleRate  int    `yaml:"mic_sample_rate"`

	Personas []persona.Persona `yaml:"personas"`

	// EvalModel is "provider/model", e.g. "anthropic/claude-sonnet-4-20250514".
	// Empty means the HTTP evaluation endpoint is used instead.
	EvalModel string `yaml:"eval_model"`

	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets — env vars only, never serialized to YAML.
	APIToken        string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		Mode:                  "websocket",
		WarnAfter:             "5m",
		ListenAddr:            "127.0.0.1:8790",
		DBPath:                "data/collabo-speak.db",
		TranscriptsDir:        "data/transcripts",
		MicSampleRate:         16000,
		Personas:              persona.Defaults(),
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	if len(cfg.Personas) == 0 {
		cfg.Personas = persona.Defaults()
	}

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedWarnAfter returns WarnAfter as a time.Duration, falling back to
// 5m if the value is invalid.
func (c *Config) ParsedWarnAfter() time.Duration {
	d, err := time.ParseDuration(c.WarnAfter)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// SplitEvalModel returns the provider and model halves of EvalModel.
func (c *Config) SplitEvalModel() (provider, model string) {
	parts := strings.SplitN(c.EvalModel, "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "SIGNALING_URL"); v != "" {
		cfg.SignalingURL = v
	}
	if v := os.Getenv(EnvPrefix + "EVALUATION_URL"); v != "" {
		cfg.EvaluationURL = v
	}
	if v := os.Getenv(EnvPrefix + "BLOB_UPLOAD_URL"); v != "" {
		cfg.BlobUploadURL = v
	}
	if v := os.Getenv(EnvPrefix + "RECORDS_URL"); v != "" {
		cfg.RecordsURL = v
	}
	if v := os.Getenv(EnvPrefix + "AGENT_ID"); v != "" {
		cfg.AgentID = v
	}
	if v := os.Getenv(EnvPrefix + "USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv(EnvPrefix + "MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv(EnvPrefix + "WARN_AFTER"); v != "" {
		cfg.WarnAfter = v
	}
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTS_DIR"); v != "" {
		cfg.TranscriptsDir = v
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "EVAL_MODEL"); v != "" {
		cfg.EvalModel = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.APIToken = os.Getenv(EnvPrefix + "API_TOKEN")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.SignalingURL == "" {
		warnings = append(warnings, "Signaling URL not configured — sessions cannot start. Set signaling_url or "+EnvPrefix+"SIGNALING_URL.")
	}
	if cfg.AgentID == "" {
		warnings = append(warnings, "Agent ID not configured — sessions cannot start. Set agent_id or "+EnvPrefix+"AGENT_ID.")
	}
	if cfg.APIToken == "" {
		warnings = append(warnings, "API token not configured — transcript upload and evaluation are disabled. Set "+EnvPrefix+"API_TOKEN.")
	}
	if cfg.Mode != "websocket" && cfg.Mode != "webrtc" {
		warnings = append(warnings, fmt.Sprintf("Unknown mode %q — using websocket.", cfg.Mode))
		cfg.Mode = "websocket"
	}
	if _, err := time.ParseDuration(cfg.WarnAfter); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid warn_after %q — using default 5m.", cfg.WarnAfter))
	}
	if cfg.EvalModel != "" {
		if provider, model := cfg.SplitEvalModel(); provider == "" || model == "" {
			warnings = append(warnings, fmt.Sprintf("Invalid eval_model %q — expected provider/model. Using the evaluation endpoint.", cfg.EvalModel))
			cfg.EvalModel = ""
		}
	}

	return warnings
}
