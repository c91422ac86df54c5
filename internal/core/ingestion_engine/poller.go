package ingestion_engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

type documentRunner interface {
	RunDocument(ctx context.Context, docID string) error
}

// Poller drives the ingestion worker on a fixed interval.
// Each tick handles at most FetchLimit documents, one after the other.
type Poller struct {
	db       core.DocumentStore
	runner   documentRunner
	interval time.Duration
	limit    int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewPoller(db core.DocumentStore, runner documentRunner, cfg IngestConfig) *Poller {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultIngestConfig().PollInterval
	}
	limit := cfg.FetchLimit
	if limit <= 0 {
		limit = 1
	}
	return &Poller{db: db, runner: runner, interval: interval, limit: limit}
}

// Start polls immediately and then once per interval. It blocks until Stop is
// called or ctx is done; a tick in progress always finishes first.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	logger.Info("ingestion poller started", "interval", p.interval.String(), "fetch_limit", p.limit)
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("ingestion poller stopping", "reason", ctx.Err().Error())
			p.markStopped()
			return nil
		case <-stopCh:
			logger.Info("ingestion poller stopped")
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// Stop ends the loop and waits for the in-flight tick. Calling it more than once is safe.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) markStopped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.running = false
		close(p.stopCh)
	}
}

func (p *Poller) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := p.PollOnce(ctx); err != nil {
		logger.Warn("poll cycle failed", "error", err)
	}
}

// PollOnce fetches pending documents and runs each one to completion or failure.
// Only the fetch error is returned; per-document errors are logged, and losing a
// claim race is not an error.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	docs, err := p.db.FetchPendingDocuments(ctx, p.limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, doc := range docs {
		err := p.runner.RunDocument(ctx, doc.ID)
		switch {
		case errors.Is(err, core.ErrClaimConflict):
			logger.Debug("document claimed elsewhere, skipping", "document_id", doc.ID)
		case err != nil:
			logger.Warn("document ingestion ended in failure", "document_id", doc.ID, "error", err)
		default:
			processed++
		}
	}
	return processed, nil
}
