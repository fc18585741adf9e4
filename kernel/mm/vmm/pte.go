package vmm

import "gopher386/kernel/mm"

// PageTableEntryFlag describes a flag that can be applied to a page
// directory or page table entry.
type PageTableEntryFlag uint32

// pageTableEntry describes a 32-bit i386 page directory or page table entry.
// Bits 12-31 hold the physical frame address and the low 12 bits hold flags.
type pageTableEntry uint32

// pageTable is the layout shared by the page directory and every page table:
// a 4K block of entries.
type pageTable [mm.EntriesPerTable]pageTableEntry

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint32(pte) & uint32(flags)) == uint32(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte pageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint32(pte) & uint32(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uint32(*pte) | (uint32(flags) & pteFlagMask))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uint32(*pte) &^ (uint32(flags) & pteFlagMask))
}

// Flags returns the flag bits of the entry.
func (pte pageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uint32(pte) & pteFlagMask)
}

// Frame returns the physical page frame that this page table entry points to.
func (pte pageTableEntry) Frame() mm.Frame {
	return mm.Frame((uint32(pte) & ptePhysPageMask) >> mm.PageShift)
}

// SetFrame updates the page table entry to point the the given physical frame.
func (pte *pageTableEntry) SetFrame(frame mm.Frame) {
	*pte = pageTableEntry((uint32(*pte) &^ ptePhysPageMask) | uint32(frame)<<mm.PageShift)
}

var flagNames = [...]string{"P", "RW", "U", "PWT", "PCD", "A", "D", "PS", "G"}

// String returns the names of the set flags joined by '|'.
func (f PageTableEntryFlag) String() string {
	var buf []byte
	for bit, name := range flagNames {
		if f&(1<<uint(bit)) == 0 {
			continue
		}
		if len(buf) != 0 {
			buf = append(buf, '|')
		}
		buf = append(buf, name...)
	}
	if len(buf) == 0 {
		return "-"
	}
	return string(buf)
}
