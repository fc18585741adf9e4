// Package pmm implements the physical frame allocator used during kernel
// bring-up.
//
// The allocator manages a fixed pool of frame descriptors. Free descriptors
// are kept on a doubly linked list; allocations detach runs of descriptors
// from the head of that list and hand them to the caller as a Run. The links
// are indices into the descriptor pool rather than pointers so the pool can
// live in a static array for the lifetime of the kernel.
package pmm

import (
	"gopher386/kernel"
	"gopher386/kernel/mm"
	"gopher386/kernel/sync"
)

const (
	// PoolSize is the number of descriptors in the default pool.
	PoolSize = 128

	// FrameShift is equal to log2(FrameSize).
	FrameShift = uintptr(21)

	// FrameSize is the size in bytes of the frames handed out by the
	// default allocator (2M). A frame spans FrameSize/mm.PageSize pages.
	FrameSize = uintptr(1) << FrameShift
)

var (
	// ErrOutOfFrames is returned by Allocate when the free list holds
	// fewer descriptors than requested.
	ErrOutOfFrames = &kernel.Error{Module: "pmm", Message: "not enough free frames to satisfy allocation request"}

	// ErrZeroFrames is returned by Allocate when asked for zero frames.
	ErrZeroFrames = &kernel.Error{Module: "pmm", Message: "allocation request must be for at least one frame"}

	// ErrForeignRun is returned by Free when the run was not handed out by
	// this allocator.
	ErrForeignRun = &kernel.Error{Module: "pmm", Message: "run does not belong to this allocator"}

	errInvalidPool = &kernel.Error{Module: "pmm", Message: "frame pool requires a positive frame count and page-aligned power-of-two frame size and base"}
)

// handle is the index of a descriptor inside its pool.
type handle int32

// nilHandle terminates a descriptor list.
const nilHandle = handle(-1)

// Descriptor describes one physical frame tracked by an Allocator. A
// descriptor is linked into exactly one list at a time: the free list or
// the Run it was allocated to.
type Descriptor struct {
	addr       uintptr
	next, prev handle
}

// Address returns the frame-aligned physical address of the frame.
func (d *Descriptor) Address() uintptr {
	return d.addr
}

// Allocator hands out runs of frames from a fixed descriptor pool.
type Allocator struct {
	lock sync.Spinlock

	descriptors []Descriptor
	frameSize   uintptr
	base        uintptr

	freeHead handle
}

// NewAllocator returns an allocator for count frames of frameSize bytes
// starting at physical address base. The allocator must be initialized with
// Init before use.
func NewAllocator(count int, frameSize, base uintptr) (*Allocator, *kernel.Error) {
	if count <= 0 || frameSize < mm.PageSize || frameSize&(frameSize-1) != 0 || !mm.IsAligned(base, frameSize) {
		return nil, errInvalidPool
	}

	if uint64(base)+uint64(count)*uint64(frameSize) > mm.AddressSpaceLimit {
		return nil, errInvalidPool
	}

	return &Allocator{
		descriptors: make([]Descriptor, count),
		frameSize:   frameSize,
		base:        base,
		freeHead:    nilHandle,
	}, nil
}

// Init resets the free list so it contains every descriptor in the pool.
// Descriptor i is assigned address base + i*frameSize and descriptors are
// pushed to the head in ascending index order, leaving the highest index at
// the head of the list.
func (a *Allocator) Init() {
	a.lock.Acquire()
	defer a.lock.Release()

	a.freeHead = nilHandle
	for index := range a.descriptors {
		desc := &a.descriptors[index]
		desc.addr = a.base + uintptr(index)*a.frameSize
		a.pushFront(&a.freeHead, handle(index))
	}
}

// Allocate detaches n descriptors from the head of the free list and returns
// them as a Run in pop order. If the free list runs out before n descriptors
// are collected, the popped descriptors are pushed back in reverse order,
// restoring the free list exactly, and ErrOutOfFrames is returned.
func (a *Allocator) Allocate(n int) (Run, *kernel.Error) {
	if n < 1 {
		return Run{head: nilHandle}, ErrZeroFrames
	}

	a.lock.Acquire()
	defer a.lock.Release()

	runHead, runTail := nilHandle, nilHandle
	for collected := 0; collected < n; collected++ {
		got := a.popFront(&a.freeHead)
		if got == nilHandle {
			// Roll back: walk the partial run from its tail so the
			// first popped descriptor ends up at the head again.
			for cur := runTail; cur != nilHandle; {
				prev := a.descriptors[cur].prev
				a.pushFront(&a.freeHead, cur)
				cur = prev
			}
			return Run{head: nilHandle}, ErrOutOfFrames
		}

		if runHead == nilHandle {
			runHead = got
		} else {
			a.descriptors[runTail].next = got
			a.descriptors[got].prev = runTail
		}
		runTail = got
	}

	return Run{owner: a, head: runHead}, nil
}

// Free splices every descriptor of run onto the front of the free list,
// preserving the run's order. Freeing an empty run is a no-op.
//
// Descriptors carry no allocation state so freeing the same run twice cannot
// be detected and corrupts the free list.
func (a *Allocator) Free(run Run) *kernel.Error {
	if run.Empty() {
		return nil
	}

	if run.owner != a || int(run.head) >= len(a.descriptors) {
		return ErrForeignRun
	}

	a.lock.Acquire()
	defer a.lock.Release()

	tail := a.tail(run.head)
	a.descriptors[tail].next = a.freeHead
	if a.freeHead != nilHandle {
		a.descriptors[a.freeHead].prev = tail
	}

	a.descriptors[run.head].prev = nilHandle
	a.freeHead = run.head
	return nil
}

// FreeCount returns the number of descriptors on the free list. It walks the
// entire list and is meant for diagnostics.
func (a *Allocator) FreeCount() int {
	a.lock.Acquire()
	defer a.lock.Release()

	return a.length(a.freeHead)
}

// Capacity returns the number of descriptors in the pool.
func (a *Allocator) Capacity() int {
	return len(a.descriptors)
}

// FrameSize returns the size of the frames managed by this allocator.
func (a *Allocator) FrameSize() uintptr {
	return a.frameSize
}

func (a *Allocator) pushFront(head *handle, h handle) {
	desc := &a.descriptors[h]
	desc.prev = nilHandle
	desc.next = *head
	if *head != nilHandle {
		a.descriptors[*head].prev = h
	}
	*head = h
}

func (a *Allocator) popFront(head *handle) handle {
	h := *head
	if h == nilHandle {
		return nilHandle
	}

	desc := &a.descriptors[h]
	*head = desc.next
	if *head != nilHandle {
		a.descriptors[*head].prev = nilHandle
	}
	desc.next, desc.prev = nilHandle, nilHandle
	return h
}

func (a *Allocator) tail(head handle) handle {
	if head == nilHandle {
		return nilHandle
	}
	for a.descriptors[head].next != nilHandle {
		head = a.descriptors[head].next
	}
	return head
}

func (a *Allocator) length(head handle) int {
	n := 0
	for ; head != nilHandle; head = a.descriptors[head].next {
		n++
	}
	return n
}
