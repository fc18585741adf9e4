package pmm

// Run is a list of descriptors detached from the free list by a single
// Allocate call. The zero-length Run returned on failure is Empty.
//
// A Run shares its links with the allocator's pool: once passed to Free it
// must not be used again.
type Run struct {
	owner *Allocator
	head  handle
}

// Empty returns true if the run holds no descriptors.
func (r Run) Empty() bool {
	return r.owner == nil || r.head == nilHandle
}

// Len returns the number of descriptors in the run.
func (r Run) Len() int {
	if r.Empty() {
		return 0
	}
	return r.owner.length(r.head)
}

// FrameSize returns the size in bytes of every frame in the run.
func (r Run) FrameSize() uintptr {
	if r.owner == nil {
		return 0
	}
	return r.owner.frameSize
}

// Visit invokes fn for each descriptor in run order. Iteration stops when fn
// returns false.
func (r Run) Visit(fn func(*Descriptor) bool) {
	if r.Empty() {
		return
	}

	for cur := r.head; cur != nilHandle; cur = r.owner.descriptors[cur].next {
		if !fn(&r.owner.descriptors[cur]) {
			return
		}
	}
}

// VisitFrames invokes fn with the physical address and size of each frame in
// run order. Iteration stops when fn returns false.
func (r Run) VisitFrames(fn func(physAddr, size uintptr) bool) {
	r.Visit(func(desc *Descriptor) bool {
		return fn(desc.addr, r.owner.frameSize)
	})
}

// Addresses returns the physical address of each frame in run order.
func (r Run) Addresses() []uintptr {
	addrs := make([]uintptr, 0, r.Len())
	r.Visit(func(desc *Descriptor) bool {
		addrs = append(addrs, desc.addr)
		return true
	})
	return addrs
}
