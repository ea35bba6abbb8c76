package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context.
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one RPC call or one
// connection's worker goroutine.
type LogContext struct {
	ConnectionID string    // Connection context identifier
	ReqID        uint64    // Wire-level correlation id, once known
	FnID         uint32    // Function id being dispatched/invoked
	SlotIdx      uint32    // Slot index owning this call
	StartTime    time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a connection.
func NewLogContext(connectionID string) *LogContext {
	return &LogContext{
		ConnectionID: connectionID,
		StartTime:    time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithReqID returns a copy with the req_id/slot_idx/fn_id set.
func (lc *LogContext) WithReqID(reqID uint64, slotIdx uint32, fnID uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ReqID = reqID
		clone.SlotIdx = slotIdx
		clone.FnID = fnID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
