// Package gsync provides generic synchronization primitives used by the
// txn and speculative packages: a type-safe atomic pointer (the CAS that
// backs logical-lock ownership) and a type-safe sync.Pool (the per-iteration
// allocator arena pool).
package gsync

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// AtomicPointer enables type-safe atomic operations on pointer values.
type AtomicPointer[T any] struct{ ptr unsafe.Pointer }

func MakeAtomicPointer[T any](value *T) AtomicPointer[T] {
	return AtomicPointer[T]{unsafe.Pointer(value)}
}

func (ptr *AtomicPointer[T]) CompareAndSwap(old, new *T) (swapped bool) {
	return atomic.CompareAndSwapPointer(&ptr.ptr, unsafe.Pointer(old), unsafe.Pointer(new))
}

func (ptr *AtomicPointer[T]) Load() *T {
	return (*T)(atomic.LoadPointer(&ptr.ptr))
}

func (ptr *AtomicPointer[T]) Store(value *T) {
	atomic.StorePointer(&ptr.ptr, unsafe.Pointer(value))
}

func (ptr *AtomicPointer[T]) Swap(new *T) (old *T) {
	return (*T)(atomic.SwapPointer(&ptr.ptr, unsafe.Pointer(new)))
}

// Pool is a type-safe version of sync.Pool.
type Pool[T any] struct {
	New      func() *T
	syncPool AtomicPointer[sync.Pool]
}

func (p *Pool[T]) getSyncPool() *sync.Pool {
	if result := p.syncPool.Load(); result != nil {
		return result
	}
	result := &sync.Pool{
		New: func() any {
			return p.New()
		},
	}
	if p.syncPool.CompareAndSwap(nil, result) {
		return result
	}
	return p.syncPool.Load()
}

func (p *Pool[T]) Get() *T {
	return p.getSyncPool().Get().(*T)
}

func (p *Pool[T]) Put(x *T) {
	p.getSyncPool().Put(x)
}
