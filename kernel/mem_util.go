package kernel

import "unsafe"

// Memset sets size bytes at the given address to the supplied value. Instead
// of a byte loop, this function makes log2(size) copy calls which is what
// clearing a 4K page table needs.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	// Set first element and make log2(size) optimized copies
	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}
