package vmm

import (
	"gopher386/kernel"
	"gopher386/kernel/mm"
)

// PageDirectory describes the top-most table in the i386 two-level paging
// scheme.
type PageDirectory struct {
	physAddr uintptr
	entries  *pageTable
}

// Address returns the physical address of the directory; this is the value
// loaded into CR3.
func (pd *PageDirectory) Address() uintptr {
	return pd.physAddr
}

// InstallRecursiveMapping points the last directory slot at the directory
// itself (present, writable, supervisor-only). It must be called exactly once
// and before the directory is loaded; the slot is never modified afterwards.
func (pd *PageDirectory) InstallRecursiveMapping() *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	if pagingEnabledFn() {
		return ErrPagingEnabled
	}

	lastPdtEntry := &pd.entries[recursiveSlot]
	if lastPdtEntry.HasFlags(FlagPresent) {
		return ErrRecursiveMappingExists
	}

	*lastPdtEntry = 0
	lastPdtEntry.SetFrame(mm.FrameFromAddress(pd.physAddr))
	lastPdtEntry.SetFlags(FlagPresent | FlagRW)
	return nil
}

func (pd *PageDirectory) hasRecursiveMapping() bool {
	lastPdtEntry := pd.entries[recursiveSlot]
	return lastPdtEntry.HasFlags(FlagPresent) && lastPdtEntry.Frame().Address() == pd.physAddr
}

// ensurePageTable returns the page table referenced by directory slot index,
// allocating a cleared table from the pool and wiring the slot (present,
// writable, supervisor-only, 4K pages) if the slot is empty. The table is
// reached through its physical address so this is only valid before paging
// is enabled.
func (pd *PageDirectory) ensurePageTable(index int) (*pageTable, *kernel.Error) {
	if index == recursiveSlot {
		return nil, ErrReservedRange
	}

	pde := &pd.entries[index]
	if pde.HasFlags(FlagPresent) {
		return physTableFn(pde.Frame().Address())
	}

	tableAddr, table, err := pool.alloc()
	if err != nil {
		return nil, err
	}

	*pde = 0
	pde.SetFrame(mm.FrameFromAddress(tableAddr))
	pde.SetFlags(FlagPresent | FlagRW)
	return table, nil
}

// mapOnePage installs a page -> frame mapping using the physical addresses
// of the directory and its tables. The leaf entry is always marked present.
func (pd *PageDirectory) mapOnePage(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	table, err := pd.ensurePageTable(page.DirectoryIndex())
	if err != nil {
		return err
	}

	pte := &table[page.TableIndex()]
	*pte = 0
	pte.SetFrame(frame)
	pte.SetFlags(FlagPresent | flags)
	return nil
}

// mapPage installs a mapping using the bring-up path while paging is off and
// the recursive path once it is on. After paging is enabled only the active
// directory can be modified.
func (pd *PageDirectory) mapPage(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	if !pagingEnabledFn() {
		return pd.mapOnePage(page, frame, flags)
	}

	if activePDTFn() != pd.physAddr {
		return ErrInactiveDirectory
	}

	return mapRecursive(page, frame, flags)
}
