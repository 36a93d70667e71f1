package transport

// Allocator supplies the payload storage for queued TX frames and RX
// session buffers. Allocate returns nil when memory is exhausted; the
// engine treats that as a recoverable failure of the triggering operation.
// Implementations need not be safe for concurrent use — the Instance is
// single-threaded by contract.
type Allocator interface {
	Allocate(size int) []byte
	Free(buf []byte)
}

// Heap returns an Allocator backed by the Go runtime. Free is a no-op;
// the garbage collector reclaims released buffers.
func Heap() Allocator { return heapAllocator{} }

type heapAllocator struct{}

func (heapAllocator) Allocate(size int) []byte { return make([]byte, size) }

func (heapAllocator) Free([]byte) {}

// Pool is a fixed-capacity block allocator for deployments that must bound
// memory up front. Every allocation consumes one block regardless of size;
// requests larger than the block size fail. Buffers passed to Free must
// have come from the same pool.
type Pool struct {
	blockSize int
	free      [][]byte
}

// NewPool creates a pool with the given number of blocks, blockSize bytes each.
func NewPool(blocks, blockSize int) *Pool {
	p := &Pool{blockSize: blockSize, free: make([][]byte, 0, blocks)}
	for i := 0; i < blocks; i++ {
		p.free = append(p.free, make([]byte, blockSize))
	}
	return p
}

func (p *Pool) Allocate(size int) []byte {
	if size > p.blockSize || len(p.free) == 0 {
		return nil
	}
	b := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return b[:size]
}

func (p *Pool) Free(buf []byte) {
	if buf == nil {
		return
	}
	p.free = append(p.free, buf[:p.blockSize])
}

// Capacity returns the number of blocks currently available.
func (p *Pool) Capacity() int { return len(p.free) }
