// Package sync provides the spinlock that serializes access to the frame
// allocator and the paging structures once more than one execution context
// exists.
package sync

import (
	"runtime"
	"sync/atomic"
)

// attemptsBeforeYielding is the number of failed acquisition attempts
// after which Acquire hands the processor to another task.
const attemptsBeforeYielding = 64

var (
	// yieldFn is invoked by Acquire when the lock stays contended. While
	// hosted, the Go scheduler is the only other task.
	yieldFn = runtime.Gosched
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempts := 0; !atomic.CompareAndSwapUint32(&l.state, 0, 1); attempts++ {
		if attempts == attemptsBeforeYielding {
			yieldFn()
			attempts = 0
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise. Unlike Acquire it never spins.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
