package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 3
	defaultBuffer      = 256
	defaultJobTimeout  = 30 * time.Second
)

// Pool runs jobs on a fixed set of goroutines in the current process.
type Pool struct {
	registry    *Registry
	jobs        chan Job
	workers     int
	maxAttempts int
	backoff     time.Duration
	timeout     time.Duration
	logger      *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

type PoolOption func(*Pool)

func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

func WithMaxAttempts(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*d.
func WithBackoff(d time.Duration) PoolOption {
	return func(p *Pool) { p.backoff = d }
}

func WithBuffer(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.jobs = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.timeout = d }
}

func NewPool(registry *Registry, workers int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		registry:    registry,
		jobs:        make(chan Job, defaultBuffer),
		workers:     workers,
		maxAttempts: DefaultMaxAttempts,
		backoff:     time.Second,
		timeout:     defaultJobTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.logger.Info("queue pool started", "workers", p.workers)
}

// Enqueue blocks only while the buffer is full.
func (p *Pool) Enqueue(ctx context.Context, kind Kind, recipient string, payload map[string]any) {
	job := NewJob(kind, recipient, payload)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("queue closed, dropping job", "kind", kind, "job_id", job.ID)
		return
	}
	select {
	case p.jobs <- job:
	case <-ctx.Done():
		p.logger.Warn("enqueue cancelled", "kind", kind, "job_id", job.ID, "error", ctx.Err())
	}
}

// Stop refuses new jobs, drains the buffer and waits for workers or ctx.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.process(job)
	}
}

func (p *Pool) process(job Job) {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		job.Attempt = attempt
		err := p.runOnce(job)
		if err == nil {
			return
		}
		if errors.Is(err, ErrNoHandler) {
			p.logger.Error("dropping job without handler", "kind", job.Kind, "job_id", job.ID)
			return
		}
		p.logger.Warn("job failed", "kind", job.Kind, "job_id", job.ID, "attempt", attempt, "error", err)
		if attempt < p.maxAttempts && p.backoff > 0 {
			time.Sleep(time.Duration(attempt) * p.backoff)
		}
	}
	p.logger.Error("job gave up", "kind", job.Kind, "job_id", job.ID, "attempts", p.maxAttempts)
}

func (p *Pool) runOnce(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.registry.Handle(ctx, job)
}
