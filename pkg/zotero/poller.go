package zotero

import (
	"context"
	"log/slog"
	"time"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Triggerer is the slice of the ingest worker the poller needs.
type Triggerer interface {
	Trigger()
}

// Poller periodically imports new library attachments and nudges the
// ingest worker when anything got queued.
type Poller struct {
	cfg    *config.ZoteroConfig
	sync   *SyncService
	worker Triggerer
}

// NewPoller creates a poller. It only queues documents itself when
// auto_sync is on; otherwise syncs happen through the HTTP endpoints.
func NewPoller(cfg *config.ZoteroConfig, sync *SyncService, worker Triggerer) *Poller {
	return &Poller{cfg: cfg, sync: sync, worker: worker}
}

// Run polls until the context is canceled. The first poll happens
// immediately.
func (p *Poller) Run(ctx context.Context) {
	if !p.cfg.Enabled || !p.cfg.AutoSyncEnabled() {
		slog.Info("Zotero poller disabled")
		return
	}
	slog.Info("Zotero poller started", "interval", p.cfg.PollInterval)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Zotero poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	result, err := p.sync.SyncNew(ctx)
	if err != nil {
		slog.Warn("Zotero poll failed", "error", err)
		return
	}
	if result.Queued > 0 {
		slog.Info("Zotero poll queued documents", "queued", result.Queued)
		p.worker.Trigger()
	}
}
