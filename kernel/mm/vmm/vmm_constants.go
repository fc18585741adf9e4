package vmm

import "gopher386/kernel/mm"

const (
	// recursiveSlot is the page directory entry that points back to the
	// directory itself.
	recursiveSlot = mm.EntriesPerTable - 1

	// pdtVirtualAddr is a special virtual address that exploits the
	// recursive mapping in the last directory entry to access the page
	// directory through the MMU. With all directory and table index bits
	// set to 1 the MMU follows the last directory entry twice and lands
	// on the directory.
	pdtVirtualAddr = uintptr(0xfffff000)

	// tablesVirtualAddr is the start of the 4M window that the recursive
	// entry makes visible. Page table i appears at
	// tablesVirtualAddr + i*mm.PageSize.
	tablesVirtualAddr = uintptr(recursiveSlot) << mm.DirectoryShift

	// ptePhysPageMask extracts the physical frame address from a
	// directory or table entry (bits 12-31).
	ptePhysPageMask = uint32(0xfffff000)

	// pteFlagMask covers the low 12 bits of an entry which hold flags.
	pteFlagMask = uint32(0x00000fff)
)

const (
	// FlagPresent is set when the page is available in memory.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode code can access this page. If
	// not set only the kernel can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and write-back
	// caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when a page mapped by a table entry is
	// modified.
	FlagDirty

	// FlagPageSize is only meaningful for directory entries; when set the
	// entry maps a 4M page instead of pointing to a page table. This
	// package always leaves it cleared.
	FlagPageSize

	// FlagGlobal if set, prevents the TLB from flushing the cached memory
	// address for this page when CR3 is reloaded.
	FlagGlobal
)
