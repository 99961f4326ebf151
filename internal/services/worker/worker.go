// Package worker runs conversions on a fixed pool of goroutines.
//
// Go Pattern: Goroutines and channels are Go's concurrency primitives.
// A goroutine is like a lightweight thread (thousands are fine), and
// channels are typed pipes for communication between goroutines.
//
// This worker pool pattern is very common in Go:
// 1. Create a buffered channel as a job queue
// 2. Spawn N worker goroutines that read from the channel
// 3. Send jobs to the channel from your HTTP handlers
// 4. Workers process jobs concurrently
//
// Each worker owns its own Converter (its own cleanup module instance and
// linear memory), so two conversions never touch the same module memory.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Shimizu-Technology/caj2pdf-api/internal/bridge"
)

// ErrQueueFull is returned when the job queue cannot take another job.
var ErrQueueFull = errors.New("conversion queue is full; try again later")

// ErrStopped is returned once the pool has been stopped.
var ErrStopped = errors.New("conversion pool is stopped")

// Converter is what a worker drives. *bridge.Bridge implements it.
type Converter interface {
	bridge.Readiness
	Convert(ctx context.Context, input []byte) (*bridge.Result, error)
}

// Job is one conversion request.
type Job struct {
	ID        string
	Input     []byte
	CreatedAt time.Time

	ctx   context.Context
	reply chan outcome
}

type outcome struct {
	result *bridge.Result
	err    error
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	// Go Pattern: Channels are the backbone of Go concurrency.
	// This buffered channel acts as our job queue.
	jobs       chan Job
	converters []Converter

	// Go Pattern: sync.WaitGroup tracks running goroutines so Stop can wait
	// for in-flight conversions to finish.
	wg sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	// quit releases workers still waiting for their modules on Stop.
	quit   context.Context
	cancel context.CancelFunc
}

// NewPool creates a pool with one worker per converter.
func NewPool(converters []Converter, queueSize int) *Pool {
	quit, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:       make(chan Job, queueSize),
		converters: converters,
		quit:       quit,
		cancel:     cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	log.Printf("🚀 Starting %d conversion workers", len(p.converters))
	for i, c := range p.converters {
		p.wg.Add(1)
		go p.worker(i, c)
	}
}

// Stop gracefully shuts down all workers after draining queued jobs.
func (p *Pool) Stop() {
	log.Println("⏹️  Stopping workers...")
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.cancel()

	p.wg.Wait()
	log.Println("✅ All workers stopped")
}

// Ready reports whether at least one worker's modules are initialized.
func (p *Pool) Ready() bool {
	for _, c := range p.converters {
		if c.Ready() {
			return true
		}
	}
	return false
}

// AwaitReady blocks until some worker is ready, every worker has failed to
// load, or ctx ends. A worker whose modules failed never takes jobs, so the
// rest of the pool keeps serving.
func (p *Pool) AwaitReady(ctx context.Context) error {
	if len(p.converters) == 0 {
		return &bridge.Error{Kind: bridge.ErrModuleNotReady, Stage: bridge.StageReady, Err: errors.New("pool has no workers")}
	}
	if p.Ready() {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(p.converters))
	for _, c := range p.converters {
		c := c
		go func() { errs <- c.AwaitReady(ctx) }()
	}

	var first error
	for range p.converters {
		err := <-errs
		if err == nil {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// Convert queues a job and waits for its result. Input submitted before the
// modules are ready is held back until they are (bounded by ctx), never run
// early.
func (p *Pool) Convert(ctx context.Context, id string, input []byte) (*bridge.Result, error) {
	if err := p.AwaitReady(ctx); err != nil {
		return nil, err
	}

	job := Job{
		ID:        id,
		Input:     input,
		CreatedAt: time.Now(),
		ctx:       ctx,
		reply:     make(chan outcome, 1), // buffered: the worker never blocks on an abandoned job
	}
	if err := p.submit(job); err != nil {
		return nil, err
	}

	select {
	case out := <-job.reply:
		return out.result, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("conversion %s abandoned: %w", id, ctx.Err())
	}
}

// submit adds a job to the queue without blocking.
func (p *Pool) submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	// Go Pattern: `select` with `default` makes channel operations non-blocking.
	// Without default, sending to a full channel would block the HTTP handler.
	select {
	case p.jobs <- job:
		log.Printf("📥 Conversion queued: %s (%d bytes)", job.ID, len(job.Input))
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueSize returns the current number of jobs in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return len(p.converters)
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int, c Converter) {
	defer p.wg.Done()

	if err := c.AwaitReady(p.quit); err != nil {
		if p.quit.Err() == nil {
			log.Printf("❌ Worker %d: modules failed to load, not taking jobs: %v", id, err)
		}
		return
	}

	log.Printf("👷 Worker %d started", id)

	// Go Pattern: `range` over a channel reads values until the channel is closed.
	for job := range p.jobs {
		if err := job.ctx.Err(); err != nil {
			log.Printf("⏭️  Worker %d: skipping %s, caller gave up (%v)", id, job.ID, err)
			job.reply <- outcome{err: err}
			continue
		}

		start := time.Now()
		result, err := p.run(job, c)
		if err != nil {
			log.Printf("❌ Worker %d: conversion %s failed after %s: %v", id, job.ID, time.Since(start).Round(time.Millisecond), err)
		} else {
			log.Printf("✅ Worker %d: conversion %s done in %s (%d -> %d bytes)", id, job.ID, time.Since(start).Round(time.Millisecond), len(job.Input), len(result.PDF))
		}
		job.reply <- outcome{result: result, err: err}
	}

	log.Printf("👷 Worker %d stopped", id)
}

// run converts one job; a panic escaping the converter fails only this job.
func (p *Pool) run(job Job, c Converter) (result *bridge.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &bridge.Error{Kind: bridge.ErrTransformFailure, Stage: bridge.StageConversion, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return c.Convert(job.ctx, job.Input)
}
