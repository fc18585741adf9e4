package pmm

import "gopher386/kernel"

var (
	// defaultPool backs the default allocator for the lifetime of the
	// kernel.
	defaultPool [PoolSize]Descriptor

	defaultAllocator = Allocator{
		descriptors: defaultPool[:],
		frameSize:   FrameSize,
		freeHead:    nilHandle,
	}
)

// Default returns the allocator backed by the static descriptor pool.
func Default() *Allocator { return &defaultAllocator }

// Init resets the default allocator's free list.
func Init() { defaultAllocator.Init() }

// Allocate reserves n frames from the default allocator.
func Allocate(n int) (Run, *kernel.Error) { return defaultAllocator.Allocate(n) }

// Free returns a run to the default allocator.
func Free(run Run) *kernel.Error { return defaultAllocator.Free(run) }

// FreeCount returns the number of free frames in the default allocator.
func FreeCount() int { return defaultAllocator.FreeCount() }
