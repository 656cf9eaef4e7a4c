package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gardenrelay/config"
	"gardenrelay/internal/garden/ingest"
	"gardenrelay/internal/garden/journal"
	"gardenrelay/internal/garden/memorystore"
	"gardenrelay/internal/garden/stream"
	"gardenrelay/internal/metrics"
	"gardenrelay/pkg/garden"
	"gardenrelay/pkg/storage/postgres"

	"go.uber.org/zap"
)

const (
	journalBuffer = 256
	pruneInterval = time.Hour
)

// eventPruner deletes journal rows older than a cutoff.
type eventPruner interface {
	DeleteConnectionEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Collector owns the snapshot store and the ingestion loop feeding it.
type Collector struct {
	Store   *memorystore.SnapshotStore
	Metrics *metrics.Registry
	Loop    *ingest.Loop

	journal   *journal.Journal
	postgres  *postgres.PostgresClient
	retention time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewSource builds the upstream Source selected by cfg.Mode.
func NewSource(cfg config.UpstreamConfig, logger *zap.Logger) (ingest.Source, error) {
	switch cfg.Mode {
	case config.ModeStream:
		url, err := garden.WithAccountID(cfg.WSURL, cfg.AccountID)
		if err != nil {
			return nil, err
		}
		client := garden.NewWSClient(garden.WSOptions{
			URL:              url,
			HandshakeTimeout: cfg.HandshakeTimeout,
			PingInterval:     cfg.PingInterval,
			PongWait:         cfg.PongWait,
		}, logger.Named("ws"))
		return ingest.NewStreamSource(client, cfg.RetryDelay), nil
	case config.ModePoll:
		client := garden.NewRESTClient(cfg.RESTURL, cfg.RequestTimeout)
		return ingest.NewPollSource(client, cfg.PollInterval, cfg.RequestTimeout), nil
	default:
		return nil, fmt.Errorf("unknown upstream mode %q", cfg.Mode)
	}
}

// New wires store, metrics, optional journal and the ingestion loop. Nothing
// runs until Start.
func New(cfg *config.Config, logger *zap.Logger) (*Collector, error) {
	source, err := NewSource(cfg.Upstream, logger)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		Store:   memorystore.NewSnapshotStore(),
		Metrics: metrics.NewRegistry(),
		logger:  logger,
	}

	opts := []ingest.Option{ingest.WithObserver(metricsObserver(c.Metrics))}

	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrateJournal(cfg.Postgres, cfg.Log.Environment, true)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		c.postgres = client
		c.retention = cfg.Postgres.Retention
		c.journal = journal.New(client, logger, journalBuffer)
		opts = append(opts, ingest.WithObserver(c.journal))
	}

	handler := stream.MakeMessageHandler(logger.Named("stream"), c.Store, c.Metrics, nil)
	c.Loop = ingest.NewLoop(source, c.Store, handler, logger, opts...)

	logger.Info("collector configured",
		zap.String("mode", cfg.Upstream.Mode),
		zap.String("endpoint", source.Endpoint()),
		zap.Bool("journal", cfg.Postgres.Enabled))
	return c, nil
}

// Start runs the ingestion loop (and the journal worker and pruner) in the
// background until ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	if c.journal != nil {
		c.journal.StartWorker()
	}
	if c.postgres != nil && c.retention > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			pruneLoop(ctx, c.postgres, c.retention, pruneInterval, c.logger.Named("journal"))
		}()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Loop.Run(ctx)
	}()
}

// Wait blocks until the loop has returned, then flushes the journal and
// closes the database.
func (c *Collector) Wait() {
	c.wg.Wait()

	if c.journal != nil {
		c.journal.Close()
	}
	if c.postgres != nil {
		if err := c.postgres.Close(); err != nil {
			c.logger.Warn("failed to close postgres", zap.Error(err))
		}
	}
}

// metricsObserver mirrors loop transitions into the Prometheus registry.
func metricsObserver(m *metrics.Registry) ingest.Observer {
	return ingest.ObserverFunc(func(t ingest.Transition) {
		m.SetConnected(t.To == ingest.StateConnected)
		switch {
		case t.To == ingest.StateConnected:
			m.Attempt(t.Source, nil)
		case t.From == ingest.StateConnecting && t.To == ingest.StateDisconnected && t.Err != nil:
			m.Attempt(t.Source, t.Err)
		}
	})
}

// pruneLoop applies journal retention immediately and then every interval.
func pruneLoop(ctx context.Context, p eventPruner, retention, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		n, err := p.DeleteConnectionEventsBefore(pctx, time.Now().Add(-retention))
		cancel()
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("journal pruning failed", zap.Error(err))
		case n > 0:
			logger.Info("journal pruned", zap.Int64("rows", n), zap.Duration("retention", retention))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
