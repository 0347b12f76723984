package xbrl

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// AllocStats counts the bytes and buffers handed out by a BuilderPool.
type AllocStats struct {
	LiveBytes int64
	Allocs    int64
	Frees     int64
}

// ErrMemoryLimit is reported when a conversion would grow a capped
// BuilderPool past its limit.
var ErrMemoryLimit = errors.New("arrow memory limit exceeded")

// limitExceeded is raised as a panic from inside Arrow's builders, which have
// no error path for a failed allocation, and recovered by the conversion.
type limitExceeded struct {
	size  int
	live  int64
	limit int64
}

func (e limitExceeded) Error() string {
	return fmt.Sprintf("%v: allocating %d bytes with %d of %d in use", ErrMemoryLimit, e.size, e.live, e.limit)
}

func (e limitExceeded) Is(target error) bool { return target == ErrMemoryLimit }

// countingAllocator refuses allocations past limit; a limit of 0 means
// unbounded.
type countingAllocator struct {
	mem    memory.Allocator
	limit  int64
	live   atomic.Int64
	allocs atomic.Int64
	frees  atomic.Int64
}

var _ memory.Allocator = (*countingAllocator)(nil)

func (a *countingAllocator) Allocate(size int) []byte {
	if live := a.live.Load(); a.limit > 0 && live+int64(size) > a.limit {
		panic(limitExceeded{size: size, live: live, limit: a.limit})
	}
	a.live.Add(int64(size))
	a.allocs.Add(1)
	return a.mem.Allocate(size)
}

func (a *countingAllocator) Reallocate(size int, b []byte) []byte {
	if live := a.live.Load(); a.limit > 0 && live+int64(size-len(b)) > a.limit {
		panic(limitExceeded{size: size, live: live, limit: a.limit})
	}
	a.live.Add(int64(size - len(b)))
	return a.mem.Reallocate(size, b)
}

func (a *countingAllocator) Free(b []byte) {
	a.live.Add(-int64(len(b)))
	a.frees.Add(1)
	a.mem.Free(b)
}

// BuilderPool recycles RecordBuilders for RecordSchema. It is safe for
// concurrent use; each builder belongs to one caller between get and put.
type BuilderPool struct {
	builders sync.Pool
	alloc    *countingAllocator
}

// NewBuilderPool caps the bytes held by all of the pool's builders and the
// records they produce at maxBytes, or leaves them unbounded when maxBytes is
// 0.
func NewBuilderPool(maxBytes int64) *BuilderPool {
	p := &BuilderPool{
		alloc: &countingAllocator{mem: memory.NewGoAllocator(), limit: maxBytes},
	}
	p.builders.New = func() any {
		return array.NewRecordBuilder(p.alloc, RecordSchema)
	}
	return p
}

func (p *BuilderPool) get() *array.RecordBuilder {
	return p.builders.Get().(*array.RecordBuilder)
}

// put must only see builders with no pending rows.
func (p *BuilderPool) put(b *array.RecordBuilder) {
	p.builders.Put(b)
}

func (p *BuilderPool) Stats() AllocStats {
	return AllocStats{
		LiveBytes: p.alloc.live.Load(),
		Allocs:    p.alloc.allocs.Load(),
		Frees:     p.alloc.frees.Load(),
	}
}
