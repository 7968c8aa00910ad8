package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/justapithecus/adit/policy"
	"github.com/justapithecus/adit/types"
)

// DefaultMaxConcurrent bounds how many adapters deliver at once.
const DefaultMaxConcurrent = 4

// SinkConfig configures the adapter sink.
type SinkConfig struct {
	// MaxConcurrent bounds concurrent adapter delivery (default 4).
	MaxConcurrent int
}

// Sink bridges configured adapters into the delivery pipeline as a policy
// sink. A batch fans out to all adapters concurrently, bounded by
// MaxConcurrent; within one adapter the batch is delivered sequentially so
// per-destination ordering holds.
//
// A failing adapter aborts its remaining batch and surfaces the error.
// The policy layer may retry the whole batch, so destinations that share a
// batch with a failing one must tolerate duplicates (at-least-once).
type Sink struct {
	adapters      []Adapter
	maxConcurrent int
}

// NewSink creates a sink fanning out to the given adapters.
func NewSink(cfg SinkConfig, adapters ...Adapter) *Sink {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Sink{
		adapters:      adapters,
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// WriteDeliveries forwards the batch to every adapter.
func (s *Sink) WriteDeliveries(ctx context.Context, ds []*types.Delivery) error {
	if len(ds) == 0 || len(s.adapters) == 0 {
		return nil
	}

	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	errCh := make(chan error, len(s.adapters))

	for _, a := range s.adapters {
		// Acquire semaphore (bounded concurrency).
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			defer func() { <-sem }()

			for _, d := range ds {
				if err := a.Deliver(ctx, d); err != nil {
					errCh <- fmt.Errorf("adapter %s: seq %d: %w", a.Name(), d.Seq, err)
					return
				}
			}
		}(a)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close closes every adapter and joins their errors.
func (s *Sink) Close() error {
	var errs []error
	for _, a := range s.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", a.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Verify Sink implements the policy sink interface.
var _ policy.Sink = (*Sink)(nil)
