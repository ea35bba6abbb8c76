package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that log
// aggregation and querying stay stable across packages.
const (
	// ========================================================================
	// Connection & Correlation
	// ========================================================================
	KeyConnectionID = "connection_id" // Connection context identifier (assigned at bootstrap)
	KeyReqID        = "req_id"        // Wire-level correlation id (seq<<32 | slot_idx)
	KeySlotIdx      = "slot_idx"      // Slot index within the pinned pool
	KeySeq          = "seq"           // Per-connection monotonic sequence number
	KeyFnID         = "fn_id"         // Function id being dispatched/invoked
	KeyWorkerIdx    = "worker_idx"    // Index of the per-cell worker goroutine

	// ========================================================================
	// Frame / Payload
	// ========================================================================
	KeyPayloadLen  = "payload_len" // Declared payload length from the wire header
	KeyNBytes      = "nbytes"      // Bytes actually observed on a completion
	KeyRespLen     = "resp_len"    // Length of a response payload a handler wrote
	KeyMaxInflight = "max_inflight"

	// ========================================================================
	// Networking / Bootstrap
	// ========================================================================
	KeyRemoteAddr = "remote_addr" // TCP peer address used for out-of-band bootstrap
	KeyLocalAddr  = "local_addr"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyAttempt    = "attempt"     // Retry attempt number
)

// ----------------------------------------------------------------------------
// Field constructors
// ----------------------------------------------------------------------------

// ConnectionID returns a slog.Attr for the connection context identifier.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// ReqID returns a slog.Attr for the wire-level correlation id.
func ReqID(id uint64) slog.Attr {
	return slog.Uint64(KeyReqID, id)
}

// SlotIdx returns a slog.Attr for a slot index.
func SlotIdx(idx uint32) slog.Attr {
	return slog.Uint64(KeySlotIdx, uint64(idx))
}

// Seq returns a slog.Attr for the per-connection sequence number.
func Seq(seq uint64) slog.Attr {
	return slog.Uint64(KeySeq, seq)
}

// FnID returns a slog.Attr for a function id.
func FnID(id uint32) slog.Attr {
	return slog.Uint64(KeyFnID, uint64(id))
}

// WorkerIdx returns a slog.Attr for a worker goroutine index.
func WorkerIdx(idx int) slog.Attr {
	return slog.Int(KeyWorkerIdx, idx)
}

// PayloadLen returns a slog.Attr for a declared payload length.
func PayloadLen(n uint32) slog.Attr {
	return slog.Uint64(KeyPayloadLen, uint64(n))
}

// NBytes returns a slog.Attr for bytes observed on a completion.
func NBytes(n int) slog.Attr {
	return slog.Int(KeyNBytes, n)
}

// RespLen returns a slog.Attr for a response payload length.
func RespLen(n int) slog.Attr {
	return slog.Int(KeyRespLen, n)
}

// MaxInflight returns a slog.Attr for the configured inflight bound.
func MaxInflight(n int) slog.Attr {
	return slog.Int(KeyMaxInflight, n)
}

// RemoteAddr returns a slog.Attr for a TCP peer address.
func RemoteAddr(addr string) slog.Attr {
	return slog.String(KeyRemoteAddr, addr)
}

// LocalAddr returns a slog.Attr for a local TCP address.
func LocalAddr(addr string) slog.Attr {
	return slog.String(KeyLocalAddr, addr)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// HexBytes formats a byte slice as hex for log output (gids, user-data blobs).
func HexBytes(key string, b []byte) slog.Attr {
	return slog.String(key, fmt.Sprintf("%x", b))
}
