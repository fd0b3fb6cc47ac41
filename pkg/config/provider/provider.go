// Package provider defines the config source abstraction.
//
// Providers load raw configuration bytes from a source (local file, consul,
// etcd, zookeeper) and can watch the source for changes.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Type identifies the config source type.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// Provider abstracts config sources.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Type returns the provider type for logging.
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch signals on the returned channel whenever the source changes.
	// Cancel the context to stop watching. Returns a nil channel when
	// watching is not supported.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Config configures provider creation.
type Config struct {
	// Type selects the provider.
	Type Type

	// Path is the file path or the key/node path for remote providers.
	Path string

	// Endpoints address the remote provider (consul, etcd, zookeeper).
	Endpoints []string
}

// ParseURI turns a config source string into a provider Config.
//
//	config.yaml                  -> file
//	consul://localhost:8500/minirag/config -> consul, key "minirag/config"
//	etcd://localhost:2379/minirag/config   -> etcd, key "minirag/config"
//	zk://localhost:2181/minirag/config     -> zookeeper, node "/minirag/config"
func ParseURI(source string) (Config, error) {
	for scheme, t := range map[string]Type{
		"consul://": TypeConsul,
		"etcd://":   TypeEtcd,
		"zk://":     TypeZookeeper,
	} {
		if !strings.HasPrefix(source, scheme) {
			continue
		}
		rest := strings.TrimPrefix(source, scheme)
		host, path, ok := strings.Cut(rest, "/")
		if !ok || host == "" || path == "" {
			return Config{}, fmt.Errorf("invalid %s config URI %q (expected %shost/key)", t, source, scheme)
		}
		if t == TypeZookeeper {
			path = "/" + path
		}
		return Config{Type: t, Path: path, Endpoints: []string{host}}, nil
	}
	return Config{Type: TypeFile, Path: source}, nil
}

// New creates a Provider from a Config.
func New(opts Config) (Provider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	switch opts.Type {
	case TypeFile, "":
		return NewFileProvider(opts.Path)
	case TypeConsul:
		return NewConsulProvider(opts.Endpoints, opts.Path)
	case TypeEtcd:
		return NewEtcdProvider(opts.Endpoints, opts.Path)
	case TypeZookeeper:
		return NewZookeeperProvider(opts.Endpoints, opts.Path)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", opts.Type)
	}
}
