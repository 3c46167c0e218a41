package persist

import (
	"context"
	"sync"

	"github.com/kingrea/invoicepro/internal/invoice"
)

// Saver is the write half of the Synchronizer.
type Saver interface {
	Save(ctx context.Context, invoices []invoice.Invoice)
}

// Flusher writes committed snapshots on a background goroutine. Only the
// newest pending snapshot is kept: if several commits land before the
// writer gets to them, the older ones are skipped since each snapshot is the
// full collection.
type Flusher struct {
	saver Saver

	mu         sync.Mutex
	cond       *sync.Cond
	pending    []invoice.Invoice
	hasPending bool
	enqueued   uint64
	written    uint64
	closing    bool
	stopped    bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewFlusher starts the writer goroutine. Call Close to stop it.
func NewFlusher(saver Saver) *Flusher {
	f := &Flusher{
		saver: saver,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	go f.run()
	return f
}

// Committed implements the ledger commit observer.
func (f *Flusher) Committed(snapshot []invoice.Invoice) {
	f.Notify(snapshot)
}

// Notify enqueues a full snapshot, replacing any snapshot not yet written.
func (f *Flusher) Notify(snapshot []invoice.Invoice) {
	f.mu.Lock()
	if f.closing {
		f.mu.Unlock()
		return
	}
	f.pending = snapshot
	f.hasPending = true
	f.enqueued++
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every snapshot enqueued before the call has been
// written or superseded.
func (f *Flusher) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.enqueued
	for f.written < target && !f.stopped {
		f.cond.Wait()
	}
}

// Close writes the last pending snapshot and stops the goroutine.
func (f *Flusher) Close() {
	f.once.Do(func() {
		close(f.stop)
		<-f.done
	})
}

func (f *Flusher) run() {
	defer close(f.done)
	for {
		select {
		case <-f.wake:
			f.drain()
		case <-f.stop:
			f.mu.Lock()
			f.closing = true
			f.mu.Unlock()
			f.drain()
			f.mu.Lock()
			f.stopped = true
			f.cond.Broadcast()
			f.mu.Unlock()
			return
		}
	}
}

func (f *Flusher) drain() {
	for {
		f.mu.Lock()
		if !f.hasPending {
			f.mu.Unlock()
			return
		}
		snapshot := f.pending
		seq := f.enqueued
		f.pending = nil
		f.hasPending = false
		f.mu.Unlock()

		f.saver.Save(context.Background(), snapshot)

		f.mu.Lock()
		f.written = seq
		f.cond.Broadcast()
		f.mu.Unlock()
	}
}
