// Package cpu models the i386 control registers and the translation
// lookaside buffer that the paging code programs during bring-up.
//
// The kernel only needs four privileged operations: load the translation
// root (CR3), set the protection/paging bits in CR0, invalidate one TLB
// entry and read back the active translation root. The processor state lives
// in package-level variables because there is exactly one CPU during
// bring-up.
package cpu

const (
	// CR0ProtectionEnable (PE) switches the processor to protected mode.
	CR0ProtectionEnable = uint32(1 << 0)

	// CR0PagingEnable (PG) turns on address translation through the page
	// directory pointed to by CR3.
	CR0PagingEnable = uint32(1 << 31)

	// cr3AddrMask keeps the page-aligned physical address of the directory.
	cr3AddrMask = uint32(0xfffff000)
)

var (
	cr0, cr3 uint32
	halted   bool

	// tlb caches virtual page address -> physical frame address
	// translations filled in by the page walker.
	tlb = make(map[uintptr]uintptr)

	// tlbFlushCount counts single-entry invalidations; full flushes
	// caused by SwitchPDT are not included.
	tlbFlushCount int
)

// Reset returns the processor to its power-on state: real mode, no
// translation root and an empty TLB.
func Reset() {
	cr0, cr3 = 0, 0
	halted = false
	tlbFlushCount = 0
	FlushTLB()
}

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr) {
	cr3 = uint32(pdtPhysAddr) & cr3AddrMask
	FlushTLB()
}

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr {
	return uintptr(cr3)
}

// EnablePaging sets the PE and PG bits in CR0. Once set, every memory access
// goes through the directory loaded by SwitchPDT.
func EnablePaging() {
	cr0 |= CR0ProtectionEnable | CR0PagingEnable
}

// PagingEnabled returns true if CR0.PG is set.
func PagingEnabled() bool {
	return cr0&CR0PagingEnable != 0
}

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uint32 {
	return cr0
}

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr) {
	delete(tlb, virtAddr&^uintptr(0xfff))
	tlbFlushCount++
}

// FlushTLB discards every cached translation.
func FlushTLB() {
	for page := range tlb {
		delete(tlb, page)
	}
}

// LookupTLB returns the cached frame address for the page that contains
// virtAddr.
func LookupTLB(virtAddr uintptr) (uintptr, bool) {
	frameAddr, ok := tlb[virtAddr&^uintptr(0xfff)]
	return frameAddr, ok
}

// FillTLB caches a page -> frame translation.
func FillTLB(pageAddr, frameAddr uintptr) {
	tlb[pageAddr&^uintptr(0xfff)] = frameAddr &^ uintptr(0xfff)
}

// TLBFlushCount returns the number of single-entry invalidations issued
// since the last Reset.
func TLBFlushCount() int {
	return tlbFlushCount
}

// Halt stops instruction execution until the next Reset.
func Halt() {
	halted = true
}

// Halted returns true if Halt was called since the last Reset.
func Halted() bool {
	return halted
}
