package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SIGNALING_URL", "EVALUATION_URL", "BLOB_UPLOAD_URL", "RECORDS_URL",
		"AGENT_ID", "USER_ID", "MODE", "WARN_AFTER",
		"LISTEN_ADDR", "DB_PATH", "TRANSCRIPTS_DIR", "MIC_SAMPLE_RATE",
		"EVAL_MODEL", "GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE",
		"API_TOKEN", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func fullyConfigure(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPrefix+"SIGNALING_URL", "https://api.example.com/signed-url")
	t.Setenv(EnvPrefix+"AGENT_ID", "agent-1")
	t.Setenv(EnvPrefix+"API_TOKEN", "token")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "data/collabo-speak.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.Mode != "websocket" {
		t.Fatalf("expected default mode websocket, got %q", cfg.Mode)
	}
	if cfg.WarnAfter != "5m" {
		t.Fatalf("expected default warn_after, got %q", cfg.WarnAfter)
	}
	if cfg.MicSampleRate != 16000 {
		t.Fatalf("expected default mic_sample_rate 16000, got %d", cfg.MicSampleRate)
	}
	if len(cfg.Personas) != 3 {
		t.Fatalf("expected default roster of 3, got %d", len(cfg.Personas))
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
signaling_url: https://api.example.com/signed-url
evaluation_url: https://api.example.com/evaluate
blob_upload_url: https://api.example.com/upload
records_url: https://api.example.com/participations
agent_id: agent-yaml
user_id: user-yaml
mode: webrtc
warn_after: 4m
db_path: /custom/db.sqlite
personas:
  - name: Maya
    color: "#aabbcc"
    avatar: maya.png
eval_model: anthropic/claude-sonnet-4-20250514
gdrive_folder_id: my-folder
google_credentials_file: /path/to/creds.json
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SignalingURL != "https://api.example.com/signed-url" {
		t.Fatalf("expected yaml signaling_url, got %q", cfg.SignalingURL)
	}
	if cfg.AgentID != "agent-yaml" {
		t.Fatalf("expected yaml agent_id, got %q", cfg.AgentID)
	}
	if cfg.Mode != "webrtc" {
		t.Fatalf("expected yaml mode, got %q", cfg.Mode)
	}
	if cfg.WarnAfter != "4m" {
		t.Fatalf("expected yaml warn_after, got %q", cfg.WarnAfter)
	}
	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if len(cfg.Personas) != 1 || cfg.Personas[0].Name != "Maya" {
		t.Fatalf("expected yaml personas, got %v", cfg.Personas)
	}
	if provider, model := cfg.SplitEvalModel(); provider != "anthropic" || model != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected eval model split: %q/%q", provider, model)
	}
	if cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive_folder_id, got %q", cfg.GDriveFolderID)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
agent_id: agent-yaml
db_path: /from/yaml
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"AGENT_ID", "agent-env")
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AgentID != "agent-env" {
		t.Fatalf("expected env override for agent_id, got %q", cfg.AgentID)
	}
	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env override for db_path, got %q", cfg.DBPath)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"API_TOKEN", "bearer-secret")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "ant-secret")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIToken != "bearer-secret" {
		t.Fatalf("expected api token from env, got %q", cfg.APIToken)
	}
	if cfg.AnthropicAPIKey != "ant-secret" {
		t.Fatalf("expected anthropic key from env, got %q", cfg.AnthropicAPIKey)
	}
}

func TestSecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
api_token: should-be-ignored
openai_api_key: also-ignored
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIToken != "" {
		t.Fatalf("expected empty api token (yaml should be ignored), got %q", cfg.APIToken)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("expected empty openai key (yaml should be ignored), got %q", cfg.OpenAIAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var signalingWarning, agentWarning, tokenWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "Signaling") {
			signalingWarning = true
		}
		if strings.Contains(w, "Agent ID") {
			agentWarning = true
		}
		if strings.Contains(w, "API token") {
			tokenWarning = true
		}
	}

	if !signalingWarning || !agentWarning || !tokenWarning {
		t.Fatalf("expected signaling, agent and token warnings, got: %v", warnings)
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	fullyConfigure(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when fully configured, got: %v", warnings)
	}
}

func TestInvalidModeWarning(t *testing.T) {
	clearEnv(t)
	fullyConfigure(t)
	t.Setenv(EnvPrefix+"MODE", "telepathy")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "mode") {
		t.Fatalf("expected mode warning, got: %v", warnings)
	}
	if cfg.Mode != "websocket" {
		t.Fatalf("expected fallback to websocket, got %q", cfg.Mode)
	}
}

func TestInvalidWarnAfterWarning(t *testing.T) {
	clearEnv(t)
	fullyConfigure(t)
	t.Setenv(EnvPrefix+"WARN_AFTER", "not-a-duration")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "warn_after") {
		t.Fatalf("expected warn_after warning, got: %v", warnings)
	}
	if cfg.ParsedWarnAfter() != 5*time.Minute {
		t.Fatalf("expected fallback to 5m, got %v", cfg.ParsedWarnAfter())
	}
}

func TestInvalidEvalModelWarning(t *testing.T) {
	clearEnv(t)
	fullyConfigure(t)
	t.Setenv(EnvPrefix+"EVAL_MODEL", "no-slash")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "eval_model") {
		t.Fatalf("expected eval_model warning, got: %v", warnings)
	}
	if cfg.EvalModel != "" {
		t.Fatalf("expected eval_model cleared, got %q", cfg.EvalModel)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for missing config file, got: %v", err)
	}

	if cfg.DBPath != "data/collabo-speak.db" {
		t.Fatalf("expected defaults when config file missing, got db_path=%q", cfg.DBPath)
	}
}

func TestInvalidConfigFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte(":::invalid yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)

	_, _, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}
