// Package adapter defines the outbound forwarding boundary.
//
// Adapters push each decoded message to a downstream system as it leaves
// the processing loop. The payload is the rendered JSON exactly as the
// pipeline produced it; adapters never re-serialize. The session owns
// adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"

	"github.com/justapithecus/adit/types"
)

// Adapter forwards decoded deliveries to a downstream system.
// Implementations must be safe for use by a single delivering goroutine.
type Adapter interface {
	// Name identifies the adapter in logs and error messages.
	Name() string

	// Deliver sends one decoded message to the downstream system.
	// Must respect context cancellation and deadlines.
	Deliver(ctx context.Context, d *types.Delivery) error

	// Close releases adapter resources.
	Close() error
}
