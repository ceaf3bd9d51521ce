package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"comandas/internal/model"
)

var ErrPublisherClosed = errors.New("totals publisher closed")

type TotalsSource interface {
	CurrentTotals(ctx context.Context) ([]model.TableTotal, error)
}

// Observer receives table total snapshots. PushTotals is only ever called
// from the observer's own refresh task, never concurrently.
type Observer interface {
	ID() string
	PushTotals(ctx context.Context, totals []model.TableTotal) error
}

type totalsTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}
}

// TotalsPublisher keeps one refresh task per observer: a snapshot right after
// subscribing, then one per interval until the observer unsubscribes.
type TotalsPublisher struct {
	source   TotalsSource
	interval time.Duration

	mu     sync.Mutex
	tasks  map[string]*totalsTask
	closed bool
}

func NewTotalsPublisher(source TotalsSource, interval time.Duration) *TotalsPublisher {
	return &TotalsPublisher{
		source:   source,
		interval: interval,
		tasks:    make(map[string]*totalsTask),
	}
}

// Start blocks until ctx is done, then stops every refresh task.
func (p *TotalsPublisher) Start(ctx context.Context) {
	slog.Info("starting totals publisher", "interval", p.interval)
	<-ctx.Done()
	p.Close()
	slog.Info("totals publisher stopped")
}

// Subscribe starts the observer's refresh task. Subscribing again while a task
// is running only triggers an immediate snapshot; it never adds a second timer.
func (p *TotalsPublisher) Subscribe(obs Observer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	if t, ok := p.tasks[obs.ID()]; ok {
		t.trigger()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &totalsTask{
		cancel: cancel,
		done:   make(chan struct{}),
		kick:   make(chan struct{}, 1),
	}
	p.tasks[obs.ID()] = t
	go p.run(ctx, obs, t)

	slog.Debug("totals subscription started", "observer", obs.ID())
	return nil
}

// Unsubscribe stops the observer's task and returns once it has exited.
func (p *TotalsPublisher) Unsubscribe(id string) {
	p.mu.Lock()
	t, ok := p.tasks[id]
	delete(p.tasks, id)
	p.mu.Unlock()

	if !ok {
		return
	}
	t.cancel()
	<-t.done
	slog.Debug("totals subscription stopped", "observer", id)
}

// Refresh pushes a fresh snapshot to every observer without waiting for the next tick.
func (p *TotalsPublisher) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range p.tasks {
		t.trigger()
	}
}

func (p *TotalsPublisher) Close() {
	p.mu.Lock()
	p.closed = true
	tasks := p.tasks
	p.tasks = make(map[string]*totalsTask)
	p.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

// Len reports how many observers have a running refresh task.
func (p *TotalsPublisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

func (p *TotalsPublisher) run(ctx context.Context, obs Observer, t *totalsTask) {
	defer close(t.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.push(ctx, obs)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.push(ctx, obs)
		case <-t.kick:
			p.push(ctx, obs)
		}
	}
}

// push logs failures and leaves recovery to the next tick.
func (p *TotalsPublisher) push(ctx context.Context, obs Observer) {
	totals, err := p.source.CurrentTotals(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("totals refresh failed", "observer", obs.ID(), "error", err)
		}
		return
	}
	if err := obs.PushTotals(ctx, totals); err != nil && ctx.Err() == nil {
		slog.Warn("totals push failed", "observer", obs.ID(), "error", err)
	}
}

func (t *totalsTask) trigger() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}
