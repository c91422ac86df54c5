package ingestion_engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

type recordingRunner struct {
	mu      sync.Mutex
	ids     []string
	err     error
	entered chan string
	release chan struct{}
}

func (r *recordingRunner) RunDocument(_ context.Context, id string) error {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()

	if r.entered != nil {
		r.entered <- id
	}
	if r.release != nil {
		<-r.release
	}
	return r.err
}

func (r *recordingRunner) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func pollerConfig(interval time.Duration) IngestConfig {
	cfg := DefaultIngestConfig()
	cfg.PollInterval = interval
	return cfg
}

func TestPollOnce_TakesOldestPendingOnly(t *testing.T) {
	store := newMemStore()
	store.addDocument("first", "a.md")
	store.addDocument("second", "b.md")
	runner := &recordingRunner{}

	n, err := NewPoller(store, runner, pollerConfig(time.Hour)).PollOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"first"}, runner.seen())
}

func TestPollOnce_ClaimConflictIsNotAnError(t *testing.T) {
	store := newMemStore()
	store.addDocument("doc", "a.md")
	runner := &recordingRunner{err: core.ErrClaimConflict}

	n, err := NewPoller(store, runner, pollerConfig(time.Hour)).PollOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPollOnce_FetchError(t *testing.T) {
	store := newMemStore()
	store.fetchErr = errors.New("connection refused")

	_, err := NewPoller(store, &recordingRunner{}, pollerConfig(time.Hour)).PollOnce(context.Background())

	assert.Error(t, err)
}

func TestPoller_TicksImmediatelyAndStopsIdempotently(t *testing.T) {
	store := newMemStore()
	store.addDocument("doc", "a.md")
	runner := &recordingRunner{entered: make(chan string, 1)}
	p := NewPoller(store, runner, pollerConfig(time.Hour))

	done := make(chan error, 1)
	go func() { done <- p.Start(context.Background()) }()

	select {
	case id := <-runner.entered:
		assert.Equal(t, "doc", id)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not run an initial tick")
	}

	p.Stop()
	p.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestPoller_StopWaitsForInFlightDocument(t *testing.T) {
	store := newMemStore()
	store.addDocument("doc", "a.md")
	runner := &recordingRunner{entered: make(chan string, 1), release: make(chan struct{})}
	p := NewPoller(store, runner, pollerConfig(time.Hour))

	go func() { _ = p.Start(context.Background()) }()
	<-runner.entered

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a document was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the document finished")
	}
}

func TestPoller_ReturnsOnContextCancel(t *testing.T) {
	p := NewPoller(newMemStore(), &recordingRunner{}, pollerConfig(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	p.Stop()
}
