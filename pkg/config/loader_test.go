package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config/provider"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9001
retrieval:
  top_k_retrieval: 10
  top_k_rerank: 4
ingest:
  check_interval: 30s
`)

	cfg, loader, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if loader == nil {
		t.Fatal("expected a loader for an existing file")
	}
	defer loader.Close()

	if cfg.Server.Port != 9001 {
		t.Errorf("expected port 9001, got %d", cfg.Server.Port)
	}
	if cfg.Retrieval.TopKRetrieval != 10 || cfg.Retrieval.TopKRerank != 4 {
		t.Errorf("unexpected retrieval settings: %d/%d", cfg.Retrieval.TopKRetrieval, cfg.Retrieval.TopKRerank)
	}
	if cfg.Ingest.CheckInterval != 30*time.Second {
		t.Errorf("duration decode failed: %v", cfg.Ingest.CheckInterval)
	}
	// Untouched sections still get defaults.
	if cfg.Chunking.ParentSize != 2000 {
		t.Errorf("defaults not applied: parent size %d", cfg.Chunking.ParentSize)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, loader, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if loader != nil {
		t.Error("expected nil loader for defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("MINIRAG_TEST_PORT", "9002")
	t.Setenv("MINIRAG_TEST_HOST", "qdrant.internal")

	path := writeConfig(t, `
server:
  port: ${MINIRAG_TEST_PORT}
vector_store:
  host: $MINIRAG_TEST_HOST
  port: ${MINIRAG_TEST_MISSING:-6333}
`)

	cfg, loader, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	defer loader.Close()

	if cfg.Server.Port != 9002 {
		t.Errorf("braced expansion failed: %d", cfg.Server.Port)
	}
	if cfg.VectorStore.Host != "qdrant.internal" {
		t.Errorf("bare expansion failed: %s", cfg.VectorStore.Host)
	}
	if cfg.VectorStore.Port != 6333 {
		t.Errorf("default expansion failed: %d", cfg.VectorStore.Port)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  top_k_retrieval: 5
  top_k_rerank: 10
`)

	if _, _, err := Load(context.Background(), path); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		source   string
		wantType provider.Type
		wantPath string
	}{
		{"config.yaml", provider.TypeFile, "config.yaml"},
		{"/etc/minirag/config.yaml", provider.TypeFile, "/etc/minirag/config.yaml"},
		{"consul://localhost:8500/minirag/config", provider.TypeConsul, "minirag/config"},
		{"etcd://etcd.svc:2379/minirag/config", provider.TypeEtcd, "minirag/config"},
		{"zk://zk1:2181/minirag/config", provider.TypeZookeeper, "/minirag/config"},
	}

	for _, tt := range tests {
		opts, err := provider.ParseURI(tt.source)
		if err != nil {
			t.Errorf("ParseURI(%q) failed: %v", tt.source, err)
			continue
		}
		if opts.Type != tt.wantType {
			t.Errorf("ParseURI(%q) type = %s, want %s", tt.source, opts.Type, tt.wantType)
		}
		if opts.Path != tt.wantPath {
			t.Errorf("ParseURI(%q) path = %s, want %s", tt.source, opts.Path, tt.wantPath)
		}
	}

	if _, err := provider.ParseURI("consul://hostonly"); err == nil {
		t.Error("URI without key should fail")
	}
}
