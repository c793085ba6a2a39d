// Package queue provides the named in-process work queues connecting
// pipeline stages. Each queue runs on its own ants worker pool; delivery
// is at-least-once, so consumers are responsible for idempotency where
// it matters. Cross-stage dependency is expressed only by enqueueing the
// next job, never by blocking.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/noctua-systems/noctua/retry"
)

// Name identifies one of the fixed pipeline queues.
type Name string

// The pipeline's queues.
const (
	Ingestion      Name = "ingestion"
	Embeddings     Name = "embeddings"
	TopicTagging   Name = "topic-tagging"
	Summarization  Name = "summarization"
	Dedup          Name = "dedup"
	KnowledgeGraph Name = "knowledge-graph"
	Recall         Name = "recall"
)

// allQueues drives pool construction.
var allQueues = []Name{Ingestion, Embeddings, TopicTagging, Summarization, Dedup, KnowledgeGraph, Recall}

var (
	// ErrUnknownQueue indicates an enqueue to a queue that does not exist.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrNoHandler indicates no handler is registered for a job name.
	ErrNoHandler = errors.New("no handler registered")
)

// Job describes one unit of queued work.
type Job struct {
	Queue   Name
	Name    string
	Payload []byte
}

// Handler processes one job payload. A returned error triggers the
// broker's retry policy.
type Handler func(ctx context.Context, payload []byte) error

// ExhaustedFunc runs after a job has failed all retry attempts.
// Ingestion uses it to flip the owning capture to failed so the
// failure is user-visible without log access.
type ExhaustedFunc func(ctx context.Context, job Job, err error)

// Broker owns the worker pools and handler registry for all queues.
type Broker struct {
	mu          sync.RWMutex
	pools       map[Name]*ants.Pool
	handlers    map[Name]map[string]Handler
	onExhausted map[Name]ExhaustedFunc

	maxAttempts int
	baseDelay   time.Duration
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// Option configures a Broker.
type Option func(*Broker) error

// WithWorkersPerQueue sets the pool size for each queue. Default 4.
func WithWorkersPerQueue(size int) Option {
	return func(b *Broker) error {
		if size < 1 {
			size = 1
		}
		for name, pool := range b.pools {
			pool.Release()
			fresh, err := ants.NewPool(size)
			if err != nil {
				return err
			}
			b.pools[name] = fresh
		}
		return nil
	}
}

// WithRetryPolicy sets the per-job retry bound and backoff base delay.
// Defaults: 3 attempts, 1s base delay.
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) Option {
	return func(b *Broker) error {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		b.maxAttempts = maxAttempts
		b.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

const defaultWorkersPerQueue = 4

// NewBroker creates a broker with one worker pool per queue.
func NewBroker(opts ...Option) (*Broker, error) {
	b := &Broker{
		pools:       make(map[Name]*ants.Pool, len(allQueues)),
		handlers:    make(map[Name]map[string]Handler),
		onExhausted: make(map[Name]ExhaustedFunc),
		maxAttempts: 3,
		baseDelay:   time.Second,
		logger:      slog.Default().With("component", "queue"),
	}

	for _, name := range allQueues {
		pool, err := ants.NewPool(defaultWorkersPerQueue)
		if err != nil {
			b.Release()
			return nil, err
		}
		b.pools[name] = pool
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			b.Release()
			return nil, err
		}
	}

	return b, nil
}

// Handle registers the handler for a job name on a queue.
func (b *Broker) Handle(queue Name, jobName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[queue] == nil {
		b.handlers[queue] = make(map[string]Handler)
	}
	b.handlers[queue][jobName] = handler
}

// OnExhausted registers the terminal-failure hook for a queue.
func (b *Broker) OnExhausted(queue Name, fn ExhaustedFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onExhausted[queue] = fn
}

// Enqueue marshals the payload to JSON and submits the job to the
// queue's pool. The call returns once the job is accepted; execution
// is asynchronous.
func (b *Broker) Enqueue(ctx context.Context, queue Name, jobName string, payload any) error {
	pool, ok := b.pools[queue]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queue)
	}

	b.mu.RLock()
	handler, ok := b.handlers[queue][jobName]
	exhausted := b.onExhausted[queue]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNoHandler, queue, jobName)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s/%s: %w", queue, jobName, err)
	}

	job := Job{Queue: queue, Name: jobName, Payload: data}

	b.wg.Add(1)
	submitErr := pool.Submit(func() {
		defer b.wg.Done()
		b.run(job, handler, exhausted)
	})
	if submitErr != nil {
		b.wg.Done()
		return fmt.Errorf("submitting %s/%s: %w", queue, jobName, submitErr)
	}
	return nil
}

// run executes a job under the retry policy and fires the exhausted hook
// when all attempts fail.
func (b *Broker) run(job Job, handler Handler, exhausted ExhaustedFunc) {
	ctx := context.Background()

	err := retry.Do(ctx, func() error {
		return handler(ctx, job.Payload)
	}, b.maxAttempts, b.baseDelay)
	if err == nil {
		return
	}

	b.logger.Error("job failed after retries",
		"queue", job.Queue,
		"job", job.Name,
		"attempts", b.maxAttempts,
		"err", err)

	if exhausted != nil {
		exhausted(ctx, job, err)
	}
}

// Wait blocks until every enqueued job, including jobs enqueued by other
// jobs, has finished. Intended for tests and shutdown draining.
func (b *Broker) Wait() {
	b.wg.Wait()
}

// Release stops all worker pools. The broker should not be used after
// calling Release.
func (b *Broker) Release() {
	for _, pool := range b.pools {
		if pool != nil {
			pool.Release()
		}
	}
}
