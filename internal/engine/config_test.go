package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ChunkMaxTokens != 12000 {
		t.Errorf("ChunkMaxTokens = %d, want 12000", cfg.ChunkMaxTokens)
	}
	if cfg.StoreDriver != StoreSQLite {
		t.Errorf("StoreDriver = %q, want sqlite", cfg.StoreDriver)
	}
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go_book.yaml")
	data := `
store_driver: memory
chunk_max_tokens: 4000
stage_timeout: 90s
llm_model: from-yaml
caption_langs: [de, en]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_MODEL", "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StoreDriver != StoreMemory {
		t.Errorf("StoreDriver = %q, want memory", cfg.StoreDriver)
	}
	if cfg.ChunkMaxTokens != 4000 {
		t.Errorf("ChunkMaxTokens = %d, want 4000", cfg.ChunkMaxTokens)
	}
	if cfg.StageTimeout != 90*time.Second {
		t.Errorf("StageTimeout = %v, want 90s", cfg.StageTimeout)
	}
	if cfg.LLMModel != "from-env" {
		t.Errorf("env should win over yaml, got %q", cfg.LLMModel)
	}
	if strings.Join(cfg.CaptionLangs, ",") != "de,en" {
		t.Errorf("CaptionLangs = %v", cfg.CaptionLangs)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "dynamo" }, "unknown store driver"},
		{"postgres without url", func(c *Config) { c.StoreDriver = StorePostgres }, "DATABASE_URL"},
		{"mongo without uri", func(c *Config) { c.StoreDriver = StoreMongo }, "MONGO_URI"},
		{"zero budget", func(c *Config) { c.ChunkMaxTokens = 0 }, "chunk_max_tokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCapableFlags(t *testing.T) {
	c := DefaultConfig()
	if c.CapableLLM() {
		t.Error("no API key: capable LLM must be false")
	}
	c.LLMAPIKey = "k"
	if !c.CapableLLM() {
		t.Error("API key set: capable LLM must be true")
	}
	if c.CapableSpeech() {
		t.Error("speech disabled by default")
	}
	c.SpeechEnabled = true
	if !c.CapableSpeech() {
		t.Error("speech enabled with default tool paths must be capable")
	}
}
