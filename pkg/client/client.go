// Package client implements the untyped RPC client: per-slot call
// correlation, the call submit path, and the per-cell receive
// demultiplexer.
package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/covrpc/covrpc/internal/logger"
	"github.com/covrpc/covrpc/internal/ring"
	"github.com/covrpc/covrpc/internal/slotpool"
	"github.com/covrpc/covrpc/internal/spinwait"
	"github.com/covrpc/covrpc/internal/wire"
	"github.com/covrpc/covrpc/pkg/metrics"
	"github.com/covrpc/covrpc/pkg/verbs"
)

// Config controls the slot pool and payload-size bounds for one Client.
type Config struct {
	MaxInflight    int
	MaxReqPayload  int
	MaxRespPayload int

	// Metrics receives call latency, inflight, and error observations. A
	// nil value falls back to metrics.Default.
	Metrics *metrics.Registry
}

// DefaultConfig returns covrpc's built-in defaults.
func DefaultConfig() Config {
	return Config{
		MaxInflight:    128,
		MaxReqPayload:  256,
		MaxRespPayload: 4096,
	}
}

// slot is the per-index call correlation record. expectedReqID is always
// written last when arming a call and always read first when resuming one,
// so the sync/atomic happens-before relationship on it alone is what makes
// the rest of the struct's plain fields safe to share between the
// submitting goroutine and the demux goroutine.
type slot struct {
	expectedReqID atomic.Uint64
	ready         spinwait.Flag
	respDst       []byte
	actualLen     int
}

// Client is one connection's client-side context: one queue pair, two
// pinned pools, the free-slot ring, and max_inflight standing receive
// workers.
type Client struct {
	qp       verbs.QueuePair
	sendPool *slotpool.Pool
	recvPool *slotpool.Pool
	freeRing *ring.Ring
	slots    []slot

	seq atomic.Uint64

	cfg Config

	fatal     atomic.Pointer[error]
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	connID    string
}

// New constructs a Client bound to qp, registering its send/recv pools
// against pd, and starts max_inflight receive workers.
func New(qp verbs.QueuePair, pd verbs.ProtectionDomain, cfg Config, connID string) (*Client, error) {
	if cfg.MaxInflight <= 0 {
		return nil, fmt.Errorf("client: MaxInflight must be positive")
	}
	sendCellSize := wire.HeaderSize + cfg.MaxReqPayload
	recvCellSize := wire.HeaderSize + cfg.MaxRespPayload

	sendPool, err := slotpool.New(pd, cfg.MaxInflight, sendCellSize)
	if err != nil {
		return nil, fmt.Errorf("client: send pool: %w", err)
	}
	recvPool, err := slotpool.New(pd, cfg.MaxInflight, recvCellSize)
	if err != nil {
		return nil, fmt.Errorf("client: recv pool: %w", err)
	}

	ringCap := nextPow2(2 * cfg.MaxInflight)
	freeRing := ring.New(ringCap)
	for i := 0; i < cfg.MaxInflight; i++ {
		if !freeRing.TryPush(uint32(i)) {
			return nil, fmt.Errorf("client: free ring rejected initial slot %d, capacity too small", i)
		}
	}

	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default
	}

	c := &Client{
		qp:       qp,
		sendPool: sendPool,
		recvPool: recvPool,
		freeRing: freeRing,
		slots:    make([]slot, cfg.MaxInflight),
		cfg:      cfg,
		closed:   make(chan struct{}),
		connID:   connID,
	}

	for i := 0; i < cfg.MaxInflight; i++ {
		c.wg.Add(1)
		go c.recvWorker(i)
	}

	return c, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Call reserves a slot, builds and posts a request, suspends until the
// demux resumes the waiter, and returns the bytes copied into respDst.
func (c *Client) Call(ctx context.Context, fnID uint32, req []byte, respDst []byte) (int, error) {
	start := time.Now()
	if err := c.fatalError(); err != nil {
		return 0, err
	}
	if len(req) > c.cfg.MaxReqPayload {
		c.cfg.Metrics.Errors.WithLabelValues("payload_too_large").Inc()
		return 0, &PayloadTooLargeError{Len: len(req), Max: c.cfg.MaxReqPayload}
	}

	c.cfg.Metrics.Inflight.Inc()
	defer c.cfg.Metrics.Inflight.Dec()
	defer func() { c.cfg.Metrics.CallLatency.Observe(time.Since(start).Seconds()) }()

	slotIdx := c.acquireSlot()

	seq := c.seq.Add(1) - 1
	reqID := wire.MakeReqID(seq, uint32(slotIdx))
	s := &c.slots[slotIdx]

	// Arm the waiter before posting SEND: by the time a reply can possibly
	// exist, the slot is already ready to receive it, so the demux never
	// has to spin waiting for a waiter the submitter hasn't published yet.
	s.respDst = respDst
	s.actualLen = 0
	s.ready.Reset()
	s.expectedReqID.Store(reqID)

	cell := c.sendPool.Cell(slotIdx)
	hdr := wire.Header{ReqID: reqID, PayloadLen: uint32(len(req)), FnID: fnID}
	hdr.Encode(cell)
	n := copy(cell[wire.HeaderSize:], req)

	cp := c.qp.PostSend(ctx, cell[:wire.HeaderSize+n])
	if cp.Err != nil {
		c.releaseSlot(slotIdx)
		c.cfg.Metrics.Errors.WithLabelValues("transport").Inc()
		return 0, &TransportError{Op: "PostSend", Err: cp.Err}
	}

	logger.DebugCtx(ctx, "client call submitted",
		logger.ConnectionID(c.connID), logger.ReqID(reqID), logger.SlotIdx(uint32(slotIdx)), logger.FnID(fnID))

	// No cancellation: once SEND is posted the call completes only when
	// the peer replies or the connection tears down.
	spinwait.Wait(&s.ready, c.isFatal)

	if err := c.fatalError(); err != nil {
		return 0, err
	}

	respLen := s.actualLen
	c.releaseSlot(slotIdx)
	return respLen, nil
}

func (c *Client) acquireSlot() int {
	for {
		if idx, ok := c.freeRing.TryPop(); ok {
			return int(idx)
		}
	}
}

func (c *Client) releaseSlot(idx int) {
	for !c.freeRing.TryPush(uint32(idx)) {
		// The ring is sized >= 2x max_inflight so this never spins for
		// long: a release can only contend with other releases.
	}
}

// recvWorker is one of max_inflight standing receive tasks: it owns one
// fixed recv cell, reposts a RECV in a loop, and uses the decoded header's
// slot index to resume whichever caller is waiting on it.
func (c *Client) recvWorker(cellIdx int) {
	defer c.wg.Done()
	buf := c.recvPool.Cell(cellIdx)

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		cp := c.qp.PostRecv(context.Background(), buf)
		if cp.Err != nil {
			c.fail(&TransportError{Op: "PostRecv", Err: cp.Err})
			return
		}
		if cp.NBytes < wire.HeaderSize {
			logger.Warn("client demux: short message, discarding",
				logger.ConnectionID(c.connID), logger.NBytes(cp.NBytes))
			continue
		}

		hdr, err := wire.DecodeHeader(buf)
		if err != nil {
			logger.Warn("client demux: header decode failed", logger.ConnectionID(c.connID), logger.Err(err))
			continue
		}
		if hdr.PayloadLen+wire.HeaderSize > uint32(cp.NBytes) {
			c.fail(&ProtocolError{Reason: fmt.Sprintf("payload_len %d exceeds completion length %d", hdr.PayloadLen, cp.NBytes)})
			return
		}

		slotIdx := wire.SlotIndex(hdr.ReqID)
		if int(slotIdx) >= c.cfg.MaxInflight {
			logger.Warn("client demux: out-of-range slot index, peer bug",
				logger.ConnectionID(c.connID), logger.SlotIdx(slotIdx))
			continue
		}

		s := &c.slots[slotIdx]
		if s.expectedReqID.Load() != hdr.ReqID {
			c.fail(&ProtocolError{Reason: fmt.Sprintf("stale req_id on slot %d: got %d, expected %d", slotIdx, hdr.ReqID, s.expectedReqID.Load())})
			return
		}

		payload := buf[wire.HeaderSize : wire.HeaderSize+hdr.PayloadLen]
		n := copy(s.respDst, payload)
		s.actualLen = n
		s.ready.Set()
	}
}

func (c *Client) isFatal() bool {
	return c.fatal.Load() != nil
}

func (c *Client) fatalError() error {
	if p := c.fatal.Load(); p != nil {
		return *p
	}
	return nil
}

// fail latches err as the connection's terminal failure, unblocks every
// waiting and future Call, and stops the queue pair so no further work is
// posted against it.
func (c *Client) fail(err error) {
	c.fatal.CompareAndSwap(nil, &err)
	if errKind(err) != "" {
		c.cfg.Metrics.Errors.WithLabelValues(errKind(err)).Inc()
	}
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.qp.Close()
	})
}

func errKind(err error) string {
	switch err.(type) {
	case *TransportError:
		return "transport"
	case *ProtocolError:
		return "protocol"
	default:
		return ""
	}
}

// Close tears the connection down cleanly: it stops all receive workers and
// waits for them to exit.
func (c *Client) Close() error {
	c.fail(fmt.Errorf("client: closed"))
	c.wg.Wait()
	_ = c.sendPool.Close()
	_ = c.recvPool.Close()
	return nil
}
