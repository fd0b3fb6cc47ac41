package config

import "fmt"

// VectorStoreConfig selects the vector database backend.
type VectorStoreConfig struct {
	// Backend is "qdrant" (default) or "chromem" (embedded, dense-only,
	// meant for development and tests).
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,enum=qdrant,enum=chromem,default=qdrant"`

	// CollectionPrefix namespaces the per-document collections.
	CollectionPrefix string `yaml:"collection_prefix,omitempty" json:"collection_prefix,omitempty" jsonschema:"title=Collection Prefix,default=doc_"`

	// Qdrant connection settings.
	Host       string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=localhost"`
	Port       int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=HTTP Port,default=6333"`
	GRPCPort   int    `yaml:"grpc_port,omitempty" json:"grpc_port,omitempty" jsonschema:"title=gRPC Port,default=6334"`
	PreferGRPC *bool  `yaml:"prefer_grpc,omitempty" json:"prefer_grpc,omitempty" jsonschema:"title=Prefer gRPC,default=true"`
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`
	UseTLS     bool   `yaml:"use_tls,omitempty" json:"use_tls,omitempty" jsonschema:"title=Use TLS,default=false"`

	// ChromemPath persists the embedded backend to disk when set; empty
	// keeps it in memory.
	ChromemPath string `yaml:"chromem_path,omitempty" json:"chromem_path,omitempty" jsonschema:"title=Chromem Path"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "qdrant"
	}
	if c.CollectionPrefix == "" {
		c.CollectionPrefix = "doc_"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6333
	}
	if c.GRPCPort == 0 {
		c.GRPCPort = 6334
	}
	if c.PreferGRPC == nil {
		t := true
		c.PreferGRPC = &t
	}
}

func (c *VectorStoreConfig) Validate() error {
	switch c.Backend {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("invalid backend %q (valid: qdrant, chromem)", c.Backend)
	}
	if c.CollectionPrefix == "" {
		return fmt.Errorf("collection_prefix is required")
	}
	if c.Backend == "qdrant" {
		if c.Host == "" {
			return fmt.Errorf("host is required")
		}
		if c.Port < 1 || c.Port > 65535 || c.GRPCPort < 1 || c.GRPCPort > 65535 {
			return fmt.Errorf("ports must be between 1 and 65535")
		}
	}
	return nil
}
