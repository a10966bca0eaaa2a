package learning

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Flusher persists stores off the keystroke path. It flushes every
// interval, as soon as one store has accumulated batchSize records, and a
// final time on Close.
type Flusher struct {
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	mu     sync.Mutex
	stores []*Store
	closed bool

	kick   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFlusher creates a flusher. interval <= 0 disables the periodic flush;
// batchSize <= 0 disables the size trigger.
func NewFlusher(interval time.Duration, batchSize int, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Flusher{
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		kick:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Add registers s. Records on s wake the flusher.
func (f *Flusher) Add(s *Store) {
	f.mu.Lock()
	f.stores = append(f.stores, s)
	f.mu.Unlock()

	s.setNotify(func() {
		select {
		case f.kick <- struct{}{}:
		default:
		}
	})
}

// Start runs the flush loop in the background.
func (f *Flusher) Start() {
	f.wg.Add(1)
	go f.loop()
}

func (f *Flusher) loop() {
	defer f.wg.Done()

	var tick <-chan time.Time
	if f.interval > 0 {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-tick:
			f.logErr(f.FlushAll())
		case <-f.kick:
			if f.batchSize <= 0 {
				continue
			}
			for _, s := range f.snapshot() {
				if s.Pending() >= f.batchSize {
					f.logErr(s.Flush())
				}
			}
		}
	}
}

func (f *Flusher) snapshot() []*Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Store, len(f.stores))
	copy(out, f.stores)
	return out
}

// FlushAll flushes every registered store and joins their errors.
func (f *Flusher) FlushAll() error {
	var errs []error
	for _, s := range f.snapshot() {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Flusher) logErr(err error) {
	if err != nil {
		f.logger.Warn("learning flush failed; will retry", slog.Any("error", err))
	}
}

// Close stops the loop and performs a final flush, returning its error.
func (f *Flusher) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	f.cancel()
	f.wg.Wait()

	for _, s := range f.snapshot() {
		s.setNotify(nil)
	}
	return f.FlushAll()
}
