package config

import "testing"

func validConfig() Config {
	cfg := Config{
		HTTP:       HTTPConfig{Port: 8080},
		Embedding:  EmbeddingConfig{Model: "text-embedding-3-small"},
		Generation: GenerationConfig{Model: "gpt-4o-mini"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_RedisDriverRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Driver = "redis"
	cfg.Index.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for redis driver without addrs")
	}

	cfg.Index.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with addrs set: %v", err)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Driver = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown index driver")
	}
	expected := `index.driver must be "memory" or "redis", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_UnknownChunkingMode(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking.Mode = "sentences"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown chunking mode")
	}
}

func TestValidate_UnknownSubqueryPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.SubqueryPolicy = "retry"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown subquery policy")
	}
}

func TestValidate_MissingModels(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}

	cfg = validConfig()
	cfg.Generation.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing generation model")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Chunking.Mode != "combined" {
		t.Errorf("expected chunking mode 'combined', got %q", cfg.Chunking.Mode)
	}
	if cfg.Chunking.Size != 1000 {
		t.Errorf("expected chunk size 1000, got %d", cfg.Chunking.Size)
	}
	if cfg.Generation.Attempts != 2 {
		t.Errorf("expected Attempts=2, got %d", cfg.Generation.Attempts)
	}
	if cfg.Generation.RetryPauseSec != 1 {
		t.Errorf("expected RetryPauseSec=1, got %d", cfg.Generation.RetryPauseSec)
	}
	if cfg.Retrieval.InitialK != 50 {
		t.Errorf("expected InitialK=50, got %d", cfg.Retrieval.InitialK)
	}
	if cfg.Retrieval.DistanceThreshold != 1.0 {
		t.Errorf("expected DistanceThreshold=1.0, got %f", cfg.Retrieval.DistanceThreshold)
	}
	if cfg.Retrieval.FinalK != 6 {
		t.Errorf("expected FinalK=6, got %d", cfg.Retrieval.FinalK)
	}
	if cfg.Retrieval.SubqueryPolicy != "skip" {
		t.Errorf("expected SubqueryPolicy='skip', got %q", cfg.Retrieval.SubqueryPolicy)
	}
	if cfg.Cache.MaxEntries != 100 {
		t.Errorf("expected MaxEntries=100, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TTLSec != 3600 {
		t.Errorf("expected TTLSec=3600, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Index.Driver != "memory" {
		t.Errorf("expected index driver 'memory', got %q", cfg.Index.Driver)
	}
	if cfg.Index.KeyPrefix != "docquery:" {
		t.Errorf("expected KeyPrefix='docquery:', got %q", cfg.Index.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 120, ShutdownSec: 5},
		Chunking:  ChunkingConfig{Mode: "paragraph", Size: 500, Overlap: 50},
		Retrieval: RetrievalConfig{InitialK: 20, DistanceThreshold: 0.8, FinalK: 3},
		Cache:     CacheConfig{MaxEntries: 10, TTLSec: 60},
		Index:     IndexConfig{Driver: "redis", KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Chunking.Mode != "paragraph" {
		t.Errorf("expected chunking mode 'paragraph', got %q", cfg.Chunking.Mode)
	}
	if cfg.Retrieval.InitialK != 20 {
		t.Errorf("expected InitialK=20, got %d", cfg.Retrieval.InitialK)
	}
	if cfg.Retrieval.DistanceThreshold != 0.8 {
		t.Errorf("expected DistanceThreshold=0.8, got %f", cfg.Retrieval.DistanceThreshold)
	}
	if cfg.Cache.MaxEntries != 10 {
		t.Errorf("expected MaxEntries=10, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Index.Driver != "redis" {
		t.Errorf("expected index driver 'redis', got %q", cfg.Index.Driver)
	}
	if cfg.Index.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Index.KeyPrefix)
	}
}
