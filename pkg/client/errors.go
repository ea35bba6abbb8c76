package client

import "fmt"

// PayloadTooLargeError is returned when a request exceeds the connection's
// configured max_req_payload. No slot is reserved and no SEND is posted.
type PayloadTooLargeError struct {
	Len int
	Max int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("client: request of %d bytes exceeds max_req_payload %d", e.Len, e.Max)
}

// TransportError wraps a SEND/RECV completion failure from the verb layer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError indicates the peer violated the wire protocol in a way that
// fails the connection: a payload_len larger than the received completion,
// or a stale req_id after slot reuse. Short messages and out-of-range slot
// indices are logged and discarded instead. A ProtocolError fails only this
// connection rather than aborting the process.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("client: protocol error: %s", e.Reason)
}
