package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdProvider loads config from an etcd key and uses the native watch API
// for change notifications.
type EtcdProvider struct {
	client *clientv3.Client
	key    string
}

// NewEtcdProvider connects to the given endpoints and reads the given key.
func NewEtcdProvider(endpoints []string, key string) (*EtcdProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints are required")
	}
	if key == "" {
		return nil, fmt.Errorf("etcd key is required")
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdProvider{client: client, key: key}, nil
}

func (p *EtcdProvider) Type() Type {
	return TypeEtcd
}

func (p *EtcdProvider) Load(ctx context.Context) ([]byte, error) {
	resp, err := p.client.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read etcd key %s: %w", p.key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("etcd key %s not found", p.key)
	}
	return resp.Kvs[0].Value, nil
}

func (p *EtcdProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)

		watchCh := p.client.Watch(ctx, p.key)
		for resp := range watchCh {
			if err := resp.Err(); err != nil {
				slog.Error("Etcd watch error", "key", p.key, "error", err)
				continue
			}
			if len(resp.Events) == 0 {
				continue
			}
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()

	slog.Info("Watching etcd key", "key", p.key)
	return ch, nil
}

func (p *EtcdProvider) Close() error {
	return p.client.Close()
}

var _ Provider = (*EtcdProvider)(nil)
