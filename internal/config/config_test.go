package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RAG.ChunkSize != 800 || cfg.RAG.ChunkOverlap != 100 {
		t.Fatalf("chunking = %d/%d, want 800/100", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.EmbedBatchSize != 50 || cfg.RAG.TopK != 3 {
		t.Fatalf("batch/topk = %d/%d, want 50/3", cfg.RAG.EmbedBatchSize, cfg.RAG.TopK)
	}
	if cfg.LLM.ChatModel != "gpt-4o-mini" || cfg.LLM.EmbeddingModel != "text-embedding-3-small" {
		t.Fatalf("models = %q/%q", cfg.LLM.ChatModel, cfg.LLM.EmbeddingModel)
	}
	if cfg.LLM.Temperature != 0 {
		t.Fatalf("temperature = %v, want 0", cfg.LLM.Temperature)
	}
	if cfg.Session.TTL != time.Hour {
		t.Fatalf("session ttl = %s, want 1h", cfg.Session.TTL)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("api key = %q, want empty", cfg.LLM.APIKey)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docqa.yaml")
	yaml := "server:\n  port: 9090\nrag:\n  top_k: 5\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "  sk-env  ")
	t.Setenv("DOCQA_RAG_EMBED_BATCH_SIZE", "20")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.RAG.TopK != 5 {
		t.Errorf("top_k = %d, want 5", cfg.RAG.TopK)
	}
	if cfg.RAG.EmbedBatchSize != 20 {
		t.Errorf("embed_batch_size = %d, want 20", cfg.RAG.EmbedBatchSize)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("api key = %q, want sk-env", cfg.LLM.APIKey)
	}
	if got := cfg.Address(); got != "0.0.0.0:9090" {
		t.Errorf("Address() = %q", got)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("rag:\n  chunk_overlap: 900\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for overlap >= chunk size")
	}
}

func TestValidateRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		rpm     int
		burst   int
		wantErr bool
	}{
		{"enabled defaults", true, 60, 10, false},
		{"enabled zero burst", true, 60, 0, true},
		{"enabled negative burst", true, 60, -1, true},
		{"enabled zero rate", true, 0, 10, true},
		{"disabled zero burst", false, 60, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.RateLimit.Enabled = tt.enabled
			cfg.RateLimit.RequestsPerMinute = tt.rpm
			cfg.RateLimit.Burst = tt.burst
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsZeroBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratelimit.yaml")
	if err := os.WriteFile(path, []byte("rate_limit:\n  enabled: true\n  burst: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for rate_limit.burst 0")
	}
}

func TestLoadDotEnvFirstCandidateOverrides(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "backend.env")
	second := filepath.Join(dir, "root.env")
	if err := os.WriteFile(first, []byte("OPENAI_API_KEY=sk-first\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("OPENAI_API_KEY=sk-second\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "sk-preexisting")

	loaded, err := LoadDotEnv(filepath.Join(dir, "missing.env"), first, second)
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if loaded != first {
		t.Fatalf("loaded %q, want %q", loaded, first)
	}
	if got := os.Getenv("OPENAI_API_KEY"); got != "sk-first" {
		t.Fatalf("OPENAI_API_KEY = %q, want sk-first", got)
	}
}

func TestLoadDotEnvNoneFound(t *testing.T) {
	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil || loaded != "" {
		t.Fatalf("LoadDotEnv = %q, %v; want empty, nil", loaded, err)
	}
}
