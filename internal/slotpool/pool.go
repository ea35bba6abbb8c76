// Package slotpool manages the pinned, registered memory backing a fixed
// number of fixed-size cells. Each of the client's send/recv pools and the
// server's per-worker buffer pools is one registered region sliced into
// cells, so the fast path never registers or allocates memory per call.
package slotpool

import (
	"fmt"

	"github.com/covrpc/covrpc/pkg/verbs"
)

// Pool is a fixed-size array of equal-sized cells carved out of one
// registered memory region.
type Pool struct {
	mr       verbs.MemoryRegion
	cellSize int
	count    int
}

// New registers count*cellSize bytes against pd and slices it into count
// cells of cellSize bytes each.
func New(pd verbs.ProtectionDomain, count, cellSize int) (*Pool, error) {
	if count <= 0 {
		return nil, fmt.Errorf("slotpool: count must be positive, got %d", count)
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("slotpool: cellSize must be positive, got %d", cellSize)
	}
	buf := make([]byte, count*cellSize)
	mr, err := pd.RegisterMemory(buf)
	if err != nil {
		return nil, fmt.Errorf("slotpool: register memory: %w", err)
	}
	return &Pool{mr: mr, cellSize: cellSize, count: count}, nil
}

// Cell returns the sub-slice backing cell i. The returned slice aliases the
// pool's registered region; callers must not retain it past the pool's
// lifetime.
func (p *Pool) Cell(i int) []byte {
	off := i * p.cellSize
	return p.mr.Bytes()[off : off+p.cellSize]
}

// CellSize returns the fixed size of each cell in bytes.
func (p *Pool) CellSize() int {
	return p.cellSize
}

// Count returns the number of cells in the pool.
func (p *Pool) Count() int {
	return p.count
}

// Close deregisters the pool's backing memory region.
func (p *Pool) Close() error {
	return p.mr.Deregister()
}
