package mm

import "math"

// Frame describes a 4K physical memory frame index.
type Frame uint32

const (
	// InvalidFrame is returned when a physical address cannot be
	// expressed as a frame.
	InvalidFrame = Frame(math.MaxUint32)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address pointed to by this Frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << PageShift
}

// FrameFromAddress returns a Frame that corresponds to the given physical
// address. Addresses that are not page-aligned are rounded down to the frame
// that contains them.
func FrameFromAddress(physAddr uintptr) Frame {
	if uint64(physAddr) >= AddressSpaceLimit {
		return InvalidFrame
	}
	return Frame(physAddr >> PageShift)
}

// Page describes a 4K virtual memory page index.
type Page uint32

// Address returns the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p) << PageShift
}

// DirectoryIndex returns the page directory slot that covers this page.
func (p Page) DirectoryIndex() int {
	return int(p >> TableIndexBits)
}

// TableIndex returns the page table slot that maps this page.
func (p Page) TableIndex() int {
	return int(p & (EntriesPerTable - 1))
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. Addresses that are not page-aligned are rounded down to the page
// that contains them.
func PageFromAddress(virtAddr uintptr) Page {
	return Page(uint32(virtAddr >> PageShift))
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & (PageSize - 1)
}

// DirectoryIndex returns bits 22-31 of a virtual address.
func DirectoryIndex(virtAddr uintptr) int {
	return int((uint32(virtAddr) >> DirectoryShift) & (EntriesPerTable - 1))
}

// TableIndex returns bits 12-21 of a virtual address.
func TableIndex(virtAddr uintptr) int {
	return int((uint32(virtAddr) >> PageShift) & (EntriesPerTable - 1))
}

// AlignDown rounds addr down to a multiple of align which must be a power
// of 2.
func AlignDown(addr, align uintptr) uintptr {
	return addr &^ (align - 1)
}

// AlignUp rounds addr up to a multiple of align which must be a power of 2.
func AlignUp(addr, align uintptr) uintptr {
	return (addr + align - 1) &^ (align - 1)
}

// IsAligned returns true if addr is a multiple of align.
func IsAligned(addr, align uintptr) bool {
	return addr&(align-1) == 0
}
