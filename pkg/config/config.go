// Package config defines the engine configuration, its defaults and
// validation, and the loading pipeline (provider fetch, YAML parse, env
// expansion, mapstructure decode).
package config

import (
	"fmt"
)

// Config is the root configuration for the engine.
//
// Example:
//
//	server:
//	  port: 8000
//	database:
//	  driver: sqlite
//	  database: data/minirag.db
//	llm:
//	  provider: anthropic
//	  model: claude-sonnet-4-20250514
//	retrieval:
//	  top_k_retrieval: 20
//	  top_k_rerank: 6
type Config struct {
	Server        ServerConfig        `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=HTTP server settings"`
	Database      DatabaseConfig      `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database,description=SQL database for chats and document records"`
	Paths         PathsConfig         `yaml:"paths,omitempty" json:"paths,omitempty" jsonschema:"title=Paths,description=Data directories"`
	LLM           LLMConfig           `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Language model provider"`
	Embeddings    EmbeddingsConfig    `yaml:"embeddings,omitempty" json:"embeddings,omitempty" jsonschema:"title=Embeddings,description=Dense embedding provider and cache"`
	Reranker      RerankerConfig      `yaml:"reranker,omitempty" json:"reranker,omitempty" jsonschema:"title=Reranker,description=Cross-encoder reranking"`
	Chunking      ChunkingConfig      `yaml:"chunking,omitempty" json:"chunking,omitempty" jsonschema:"title=Chunking,description=Parent and child chunk windows"`
	Retrieval     RetrievalConfig     `yaml:"retrieval,omitempty" json:"retrieval,omitempty" jsonschema:"title=Retrieval,description=Multi-query retrieval tuning"`
	Metadata      MetadataConfig      `yaml:"metadata,omitempty" json:"metadata,omitempty" jsonschema:"title=Metadata,description=Document metadata extraction"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store,omitempty" json:"vector_store,omitempty" jsonschema:"title=Vector Store,description=Vector database backend"`
	Ingest        IngestConfig        `yaml:"ingest,omitempty" json:"ingest,omitempty" jsonschema:"title=Ingest,description=Background processing worker"`
	Zotero        ZoteroConfig        `yaml:"zotero,omitempty" json:"zotero,omitempty" jsonschema:"title=Zotero,description=Zotero library import"`
	Auth          AuthConfig          `yaml:"auth,omitempty" json:"auth,omitempty" jsonschema:"title=Auth,description=Optional JWT bearer authentication"`
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Metrics and tracing"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Paths.SetDefaults()
	c.LLM.SetDefaults()
	c.Embeddings.SetDefaults()
	c.Reranker.SetDefaults()
	c.Chunking.SetDefaults()
	c.Retrieval.SetDefaults()
	c.Metadata.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Ingest.SetDefaults()
	c.Zotero.SetDefaults()
	c.Auth.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section and reports the first problem found.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"server", &c.Server},
		{"database", &c.Database},
		{"paths", &c.Paths},
		{"llm", &c.LLM},
		{"embeddings", &c.Embeddings},
		{"reranker", &c.Reranker},
		{"chunking", &c.Chunking},
		{"retrieval", &c.Retrieval},
		{"metadata", &c.Metadata},
		{"vector_store", &c.VectorStore},
		{"ingest", &c.Ingest},
		{"zotero", &c.Zotero},
		{"auth", &c.Auth},
		{"observability", &c.Observability},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Default returns a fully defaulted configuration. The engine runs with no
// config file at all; everything has a sensible local-first default.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}
