package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZookeeperProvider loads config from a znode and re-arms a GetW watch for
// change notifications.
type ZookeeperProvider struct {
	conn *zk.Conn
	path string
}

// NewZookeeperProvider connects to the given ensemble and reads the node.
func NewZookeeperProvider(endpoints []string, path string) (*ZookeeperProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}
	if path == "" {
		return nil, fmt.Errorf("zookeeper path is required")
	}

	conn, _, err := zk.Connect(endpoints, 10*time.Second, zk.WithLogInfo(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	return &ZookeeperProvider{conn: conn, path: path}, nil
}

func (p *ZookeeperProvider) Type() Type {
	return TypeZookeeper
}

func (p *ZookeeperProvider) Load(ctx context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zookeeper node %s: %w", p.path, err)
	}
	return data, nil
}

// Watch re-arms a one-shot zookeeper watch after every event. Node deletion
// ends the watch.
func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)

		for {
			_, _, eventCh, err := p.conn.GetW(p.path)
			if err != nil {
				slog.Error("Zookeeper watch error", "path", p.path, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
				continue
			}

			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				switch event.Type {
				case zk.EventNodeDataChanged:
					select {
					case ch <- struct{}{}:
					default:
					}
				case zk.EventNodeDeleted:
					slog.Warn("Zookeeper node was deleted", "path", p.path)
					return
				case zk.EventNotWatching:
					slog.Warn("Zookeeper watch lost", "path", p.path)
					return
				}
			}
		}
	}()

	slog.Info("Watching zookeeper node", "path", p.path)
	return ch, nil
}

func (p *ZookeeperProvider) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

var _ Provider = (*ZookeeperProvider)(nil)
