// Package server implements the server worker fleet: max_inflight workers
// that post receives, hand dispatch off to a compute pool so handler code
// never runs on an I/O-bound worker goroutine, and post replies.
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"

	"github.com/covrpc/covrpc/internal/logger"
	"github.com/covrpc/covrpc/internal/slotpool"
	"github.com/covrpc/covrpc/internal/wire"
	"github.com/covrpc/covrpc/pkg/metrics"
	"github.com/covrpc/covrpc/pkg/mux"
	"github.com/covrpc/covrpc/pkg/verbs"
)

// Config mirrors client.Config for the server side of one connection; cell
// sizes are symmetric with request/response swapped (the server's recv
// cell sizing matches the client's send cell, and vice versa).
type Config struct {
	MaxInflight    int
	MaxReqPayload  int
	MaxRespPayload int
	ThreadCount    int

	// Metrics receives handler and transport error observations. A nil
	// value falls back to metrics.Default.
	Metrics *metrics.Registry
}

// DefaultConfig returns covrpc's built-in defaults.
func DefaultConfig() Config {
	return Config{
		MaxInflight:    128,
		MaxReqPayload:  256,
		MaxRespPayload: 4096,
		ThreadCount:    4,
	}
}

// Server runs one connection's worker fleet against a frozen Mux.
type Server struct {
	qp       verbs.QueuePair
	recvPool *slotpool.Pool
	sendPool *slotpool.Pool
	mux      *mux.Mux
	pool     *workerpool.WorkerPool
	cfg      Config
	connID   string

	wg sync.WaitGroup
}

// New constructs a Server bound to qp and m. m must have been frozen
// (mux.Freeze) before Run is called; New does not freeze it itself so the
// caller can register handlers for multiple connections sharing one Mux
// before any of them starts serving.
func New(qp verbs.QueuePair, pd verbs.ProtectionDomain, m *mux.Mux, cfg Config, connID string) (*Server, error) {
	if cfg.MaxInflight <= 0 {
		return nil, fmt.Errorf("server: MaxInflight must be positive")
	}
	recvCellSize := wire.HeaderSize + cfg.MaxReqPayload
	sendCellSize := wire.HeaderSize + cfg.MaxRespPayload

	recvPool, err := slotpool.New(pd, cfg.MaxInflight, recvCellSize)
	if err != nil {
		return nil, fmt.Errorf("server: recv pool: %w", err)
	}
	sendPool, err := slotpool.New(pd, cfg.MaxInflight, sendCellSize)
	if err != nil {
		return nil, fmt.Errorf("server: send pool: %w", err)
	}

	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default
	}

	return &Server{
		qp:       qp,
		recvPool: recvPool,
		sendPool: sendPool,
		mux:      m,
		pool:     workerpool.New(cfg.ThreadCount),
		cfg:      cfg,
		connID:   connID,
	}, nil
}

// Run starts max_inflight worker goroutines, one per cell pair, and blocks
// until ctx is cancelled or the queue pair fails. On return every worker
// goroutine has exited and the compute pool has drained.
func (s *Server) Run(ctx context.Context) error {
	for i := 0; i < s.cfg.MaxInflight; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	workersDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(workersDone)
	}()
	select {
	case <-ctx.Done():
		<-workersDone
	case <-workersDone:
	}
	s.pool.StopWait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("server: all workers exited after receive failures")
}

// Close tears down the server's pools and stops accepting further compute
// work. It does not close the queue pair; the caller owns that.
func (s *Server) Close() error {
	s.pool.Stop()
	_ = s.recvPool.Close()
	_ = s.sendPool.Close()
	return nil
}

func (s *Server) worker(ctx context.Context, cellIdx int) {
	defer s.wg.Done()
	recvCell := s.recvPool.Cell(cellIdx)
	sendCell := s.sendPool.Cell(cellIdx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cp := s.qp.PostRecv(ctx, recvCell)
		if cp.Err != nil {
			if ctx.Err() == nil {
				logger.Warn("server worker: recv failed", logger.ConnectionID(s.connID), logger.WorkerIdx(cellIdx), logger.Err(cp.Err))
			}
			return
		}
		if cp.NBytes < wire.HeaderSize {
			logger.Warn("server worker: short message, discarding", logger.ConnectionID(s.connID), logger.NBytes(cp.NBytes))
			continue
		}

		hdr, err := wire.DecodeHeader(recvCell)
		if err != nil {
			logger.Warn("server worker: header decode failed", logger.ConnectionID(s.connID), logger.Err(err))
			continue
		}
		if hdr.PayloadLen+wire.HeaderSize > uint32(cp.NBytes) {
			logger.Warn("server worker: payload_len exceeds completion length, discarding",
				logger.ConnectionID(s.connID), logger.PayloadLen(hdr.PayloadLen), logger.NBytes(cp.NBytes))
			continue
		}

		// Copy the request out of the recv cell before handing off: the
		// cell gets reposted by the next loop iteration on another
		// goroutine's timeline relative to the pool, and must not be
		// read concurrently with that repost.
		req := make([]byte, hdr.PayloadLen)
		copy(req, recvCell[wire.HeaderSize:wire.HeaderSize+hdr.PayloadLen])

		done := make(chan struct{})
		s.pool.Submit(func() {
			defer close(done)
			s.dispatch(ctx, hdr, req, sendCell, cellIdx)
		})

		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// dispatch runs on a compute pool goroutine: it calls the mux, writes the
// response header in place, and posts the reply SEND.
func (s *Server) dispatch(ctx context.Context, reqHdr wire.Header, req []byte, sendCell []byte, workerIdx int) {
	respPayload := sendCell[wire.HeaderSize:]
	n := s.mux.Dispatch(reqHdr.FnID, req, respPayload)
	if n < 0 {
		n = 0
	}

	if n == 0 {
		s.cfg.Metrics.Errors.WithLabelValues("handler").Inc()
	}

	respHdr := wire.Header{ReqID: reqHdr.ReqID, PayloadLen: uint32(n), FnID: reqHdr.FnID}
	respHdr.Encode(sendCell)

	cp := s.qp.PostSend(ctx, sendCell[:wire.HeaderSize+n])
	if cp.Err != nil {
		s.cfg.Metrics.Errors.WithLabelValues("transport").Inc()
		if ctx.Err() == nil {
			logger.Warn("server worker: reply send failed", logger.ConnectionID(s.connID), logger.WorkerIdx(workerIdx), logger.Err(cp.Err))
		}
	}
}
