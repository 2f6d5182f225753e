// Package workerpool runs per-user jobs in parallel across users while
// guaranteeing that all jobs submitted for the same shard key run
// sequentially, in submission order, relative to each other. This gives
// the scheduler parallel-per-user, sequential-per-user execution
// without any in-memory coordination between user goroutines: each
// shard owns a private buffered channel drained by exactly one worker
// goroutine.
package workerpool

import (
	"context"
	"hash/fnv"
	"sync"
)

// Job is a unit of work submitted for a shard key.
type Job struct {
	Key string
	Run func(ctx context.Context) error
}

// Pool fans Jobs out across a fixed number of shards, each backed by one
// worker goroutine, so jobs sharing a Key always run in FIFO order.
type Pool struct {
	shards []chan Job
	wg     sync.WaitGroup

	mu      sync.Mutex
	errs    []error
	onError func(Job, error)
}

// New starts a Pool with n shards. n should be chosen for the expected
// number of concurrently active users, not the total user count.
func New(ctx context.Context, n int, onError func(Job, error)) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		shards:  make([]chan Job, n),
		onError: onError,
	}
	for i := range p.shards {
		ch := make(chan Job, 64)
		p.shards[i] = ch
		p.wg.Add(1)
		go p.worker(ctx, ch)
	}
	return p
}

func (p *Pool) worker(ctx context.Context, jobs chan Job) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := j.Run(ctx); err != nil {
				p.recordError(j, err)
			}
		}
	}
}

func (p *Pool) recordError(j Job, err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
	if p.onError != nil {
		p.onError(j, err)
	}
}

func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % len(p.shards)
}

// Submit enqueues job onto the shard owning job.Key. Submit blocks if that
// shard's queue is full.
func (p *Pool) Submit(job Job) {
	p.shards[p.shardFor(job.Key)] <- job
}

// CloseAndWait closes every shard's queue and waits for all workers to
// drain, then returns every job error observed.
func (p *Pool) CloseAndWait() []error {
	for _, ch := range p.shards {
		close(ch)
	}
	p.wg.Wait()
	return p.errs
}
