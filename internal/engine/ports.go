package engine

import (
	"context"

	"github.com/google/uuid"
)

// CartProvider fronts the cart subsystem, which owns its own storage
// and lifecycle outside this module. Confirm calls ClearCart once the
// order is created; a provider error is logged and swallowed, since a
// stale cart is not a reason to fail an already-committed order.
type CartProvider interface {
	ClearCart(ctx context.Context, callerID string) error
}

// NullCartProvider is used where no cart subsystem is wired, e.g. in
// tests that don't care about cart cleanup.
type NullCartProvider struct{}

func (NullCartProvider) ClearCart(ctx context.Context, callerID string) error { return nil }

// LowStockEvent is the payload handed to a LowStockSink when a
// Confirm commit drops a product's stock strictly below its threshold.
type LowStockEvent struct {
	ProductID  uuid.UUID
	StockAfter int32
	Threshold  int32
}

// LowStockSink fronts the out-of-scope alerting pipeline. Emit is
// best-effort: a sink failure never rolls back the commit that
// triggered it, since the LowStockSignal row is already durable.
type LowStockSink interface {
	Emit(ctx context.Context, e LowStockEvent) error
}

type NullLowStockSink struct{}

func (NullLowStockSink) Emit(ctx context.Context, e LowStockEvent) error { return nil }
