package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundprediction/retrievo/pkg/cache"
	"github.com/soundprediction/retrievo/pkg/embedder"
	"github.com/soundprediction/retrievo/pkg/index"
	"github.com/soundprediction/retrievo/pkg/types"
)

var (
	// ErrQueueFull is returned by SubmitNoWait when the pending queue is
	// at capacity.
	ErrQueueFull = errors.New("embedding queue is full")

	// ErrClosed is returned by submissions after Close.
	ErrClosed = errors.New("embedding worker pool is closed")
)

// Config holds worker pool settings.
type Config struct {
	// Workers is the number of concurrent workers.
	Workers int

	// MaxBatchSize closes a micro-batch when reached.
	MaxBatchSize int

	// MaxBatchWait closes a micro-batch this long after its first
	// request arrived, whichever trigger fires first.
	MaxBatchWait time.Duration

	// QueueDepth bounds the pending-request queue.
	QueueDepth int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 64
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = 200 * time.Millisecond
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 1024
	}
	return c
}

// Handle is a shareable completion handle for one in-flight fingerprint.
// Multiple callers may wait on the same handle.
type Handle struct {
	entry *inflight
}

// Fingerprint returns the fingerprint this handle resolves.
func (h *Handle) Fingerprint() string {
	return h.entry.fingerprint
}

// Wait blocks until the request resolves or ctx is done, returning the
// embedding vector.
func (h *Handle) Wait(ctx context.Context) ([]float32, error) {
	select {
	case <-h.entry.done:
		return h.entry.vector, h.entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// inflight is the registry entry for one pending fingerprint. The vector
// and err fields are written once, before done is closed.
type inflight struct {
	fingerprint string
	text        string

	done   chan struct{}
	vector []float32
	err    error

	// chunks awaiting a vector index upsert once this resolves; appended
	// only under the pool registry lock.
	chunks []*types.Chunk
}

// Pool is the embedding worker pool.
type Pool struct {
	cfg      Config
	store    *cache.Store
	provider embedder.Client
	index    index.VectorIndex
	logger   *slog.Logger

	// closeMu is held read-side across every queue send so Close cannot
	// close the channel under a pending sender.
	closeMu sync.RWMutex
	closed  bool
	queue   chan *inflight

	mu       sync.Mutex
	registry map[string]*inflight

	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a worker pool. The vector index is optional; when nil,
// resolved chunks are not upserted anywhere (query-only deployments).
// Call Start before submitting.
func New(cfg Config, store *cache.Store, provider embedder.Client, idx index.VectorIndex, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:      cfg,
		store:    store,
		provider: provider,
		index:    idx,
		logger:   logger,
		queue:    make(chan *inflight, cfg.QueueDepth),
		registry: make(map[string]*inflight),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("embedding worker pool started",
		"workers", p.cfg.Workers,
		"max_batch_size", p.cfg.MaxBatchSize,
		"max_batch_wait", p.cfg.MaxBatchWait)
}

// Close stops accepting submissions, drains in-flight work, and waits for
// the workers to exit, up to ctx's deadline.
func (p *Pool) Close(ctx context.Context) error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.closeMu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

// Submit registers an embedding request for text, blocking while the queue
// is full. The optional chunk is upserted into the vector index once the
// embedding resolves. Submissions for a fingerprint already in flight
// attach to the pending handle instead of enqueuing duplicate work.
func (p *Pool) Submit(ctx context.Context, text string, chunk *types.Chunk) (*Handle, error) {
	return p.submit(ctx, text, chunk, true)
}

// SubmitNoWait behaves like Submit but fails fast with ErrQueueFull instead
// of blocking when the queue is at capacity.
func (p *Pool) SubmitNoWait(text string, chunk *types.Chunk) (*Handle, error) {
	return p.submit(context.Background(), text, chunk, false)
}

// EmbedText resolves an embedding for text through the same cache-checked
// batch path as ingestion, waiting for the result. This is the query
// embedding entry point.
func (p *Pool) EmbedText(ctx context.Context, text string) ([]float32, error) {
	handle, err := p.Submit(ctx, text, nil)
	if err != nil {
		return nil, err
	}
	return handle.Wait(ctx)
}

func (p *Pool) submit(ctx context.Context, text string, chunk *types.Chunk, wait bool) (*Handle, error) {
	fingerprint := cache.Fingerprint(text, p.provider.Model())

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	p.mu.Lock()
	if entry, ok := p.registry[fingerprint]; ok {
		// Coalesce: attach to the pending request. The resolver only
		// snapshots chunks after removing the entry from the registry,
		// and both steps are serialized by p.mu, so this chunk is
		// guaranteed to be seen.
		if chunk != nil {
			entry.chunks = append(entry.chunks, chunk)
		}
		p.mu.Unlock()
		return &Handle{entry: entry}, nil
	}

	entry := &inflight{
		fingerprint: fingerprint,
		text:        text,
		done:        make(chan struct{}),
	}
	if chunk != nil {
		entry.chunks = append(entry.chunks, chunk)
	}
	p.registry[fingerprint] = entry
	p.mu.Unlock()

	if wait {
		select {
		case p.queue <- entry:
		case <-ctx.Done():
			p.resolve(entry, nil, fmt.Errorf("submission cancelled: %w", ctx.Err()))
			return nil, ctx.Err()
		}
	} else {
		select {
		case p.queue <- entry:
		default:
			p.resolve(entry, nil, ErrQueueFull)
			return nil, ErrQueueFull
		}
	}

	return &Handle{entry: entry}, nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for first := range p.queue {
		batch := p.gather(first)
		p.process(batch)
	}
	p.logger.Debug("worker stopped", "worker", id)
}

// gather accumulates a micro-batch starting from first: it closes when the
// size threshold is reached or the wait window elapses, whichever first.
func (p *Pool) gather(first *inflight) []*inflight {
	batch := []*inflight{first}
	if p.cfg.MaxBatchSize <= 1 {
		return batch
	}

	timer := time.NewTimer(p.cfg.MaxBatchWait)
	defer timer.Stop()

	for len(batch) < p.cfg.MaxBatchSize {
		select {
		case entry, ok := <-p.queue:
			if !ok {
				return batch
			}
			batch = append(batch, entry)
		case <-timer.C:
			return batch
		}
	}
	return batch
}

// process resolves a micro-batch: cache hits immediately, the rest through
// one ordered provider call. Failures are atomic for the whole provider
// call; nothing from a failed call reaches the cache.
func (p *Pool) process(batch []*inflight) {
	ctx := p.baseCtx

	fingerprints := make([]string, len(batch))
	for i, entry := range batch {
		fingerprints[i] = entry.fingerprint
	}

	cached, err := p.store.BulkGet(fingerprints)
	if err != nil {
		// A cache read failure is not fatal; treat everything as a miss.
		p.logger.Error("cache read failed, treating batch as uncached", "error", err)
		cached = map[string]*cache.Entry{}
	}

	missing := make([]*inflight, 0, len(batch))
	for _, entry := range batch {
		if hit, ok := cached[entry.fingerprint]; ok {
			p.resolve(entry, hit.Vector, nil)
		} else {
			missing = append(missing, entry)
		}
	}
	p.logger.Debug("processing batch", "size", len(batch), "cache_hits", len(batch)-len(missing))

	if len(missing) == 0 {
		return
	}

	texts := make([]string, len(missing))
	for i, entry := range missing {
		texts[i] = entry.text
	}

	vectors, err := p.provider.Embed(ctx, texts)
	if err != nil {
		p.failBatch(missing, err)
		return
	}
	if len(vectors) != len(missing) {
		p.failBatch(missing, &embedder.ProviderError{
			Provider: p.provider.Model(),
			Err:      fmt.Errorf("expected %d vectors, got %d", len(missing), len(vectors)),
		})
		return
	}

	if err := p.validateDims(vectors); err != nil {
		p.failBatch(missing, err)
		return
	}

	model := p.provider.Model()
	now := time.Now().UTC()
	entries := make(map[string]*cache.Entry, len(missing))
	for i, entry := range missing {
		entries[entry.fingerprint] = &cache.Entry{
			Vector:    vectors[i],
			Dims:      len(vectors[i]),
			Model:     model,
			CreatedAt: now,
		}
	}
	if err := p.store.BulkPut(entries); err != nil {
		p.failBatch(missing, err)
		return
	}

	for i, entry := range missing {
		p.resolve(entry, vectors[i], nil)
	}
}

// validateDims rejects a provider response whose vectors disagree in
// dimensionality, either among themselves or with the dims already recorded
// for the model.
func (p *Pool) validateDims(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("inconsistent vector dims within batch: %d vs %d at index %d", dims, len(v), i)
		}
	}

	if declared := p.provider.Dimensions(); declared > 0 && declared != dims {
		return &cache.DimensionMismatchError{Model: p.provider.Model(), Expected: declared, Got: dims}
	}

	known, found, err := p.store.Dims(p.provider.Model())
	if err != nil {
		return err
	}
	if found && known != dims {
		return &cache.DimensionMismatchError{Model: p.provider.Model(), Expected: known, Got: dims}
	}
	return nil
}

func (p *Pool) failBatch(batch []*inflight, err error) {
	p.logger.Error("embedding batch failed", "size", len(batch), "error", err)
	for _, entry := range batch {
		p.resolve(entry, nil, err)
	}
}

// resolve completes an entry: removes it from the registry, publishes the
// result to every attached waiter, and fans the vector out to the index for
// all chunks that attached while it was pending.
func (p *Pool) resolve(entry *inflight, vector []float32, err error) {
	p.mu.Lock()
	delete(p.registry, entry.fingerprint)
	chunks := entry.chunks
	p.mu.Unlock()

	entry.vector = vector
	entry.err = err
	close(entry.done)

	if err != nil || p.index == nil {
		return
	}
	for _, chunk := range chunks {
		if uerr := p.index.Upsert(p.baseCtx, chunk.ID, vector); uerr != nil {
			p.logger.Error("vector index upsert failed", "chunk_id", chunk.ID, "error", uerr)
		}
	}
}
