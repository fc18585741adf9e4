package vmm

import (
	"gopher386/kernel"
	"gopher386/kernel/mm"
)

// pdeAddr returns the virtual address of the directory entry for dirIndex
// inside the recursive window.
func pdeAddr(dirIndex int) uintptr {
	return pdtVirtualAddr + uintptr(dirIndex)<<mm.PointerShift
}

// tableWindowAddr returns the virtual address at which the page table
// referenced by directory slot dirIndex is visible.
func tableWindowAddr(dirIndex int) uintptr {
	return tablesVirtualAddr + uintptr(dirIndex)<<mm.PageShift
}

// pteAddr returns the virtual address of the table entry that maps page.
func pteAddr(page mm.Page) uintptr {
	return tableWindowAddr(page.DirectoryIndex()) + uintptr(page.TableIndex())<<mm.PointerShift
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address. It reads the active directory
// through the recursive mapping and therefore requires paging to be enabled.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	if !pagingEnabledFn() {
		return 0, ErrPagingDisabled
	}

	pte, err := lookupEntry(mm.PageFromAddress(virtAddr))
	if err != nil {
		return 0, err
	}

	return pte.Frame().Address() + mm.PageOffset(virtAddr), nil
}

// lookupEntry returns the present table entry that maps page.
func lookupEntry(page mm.Page) (*pageTableEntry, *kernel.Error) {
	pde, err := ptePtrFn(pdeAddr(page.DirectoryIndex()))
	if err != nil {
		return nil, err
	}
	if !pde.HasFlags(FlagPresent) {
		return nil, ErrInvalidMapping
	}

	pte, err := ptePtrFn(pteAddr(page))
	if err != nil {
		return nil, err
	}
	if !pte.HasFlags(FlagPresent) {
		return nil, ErrInvalidMapping
	}

	return pte, nil
}

// MapSinglePage maps the page-aligned virtual address virtAddr to the
// page-aligned physical address physAddr in the active directory. Only the
// low 12 bits of flags are used and the entry is always marked present. If
// the directory slot has no page table yet, a cleared one is taken from the
// pool. An existing mapping for virtAddr is replaced.
func MapSinglePage(physAddr, virtAddr uintptr, flags PageTableEntryFlag) *kernel.Error {
	if !mm.IsAligned(physAddr, mm.PageSize) || !mm.IsAligned(virtAddr, mm.PageSize) {
		return ErrUnaligned
	}

	frame := mm.FrameFromAddress(physAddr)
	if !frame.Valid() || uint64(virtAddr) >= mm.AddressSpaceLimit {
		return errOutsideAddressSpace
	}

	lock.Acquire()
	defer lock.Release()

	if !pagingEnabledFn() {
		return ErrPagingDisabled
	}

	return mapRecursive(mm.PageFromAddress(virtAddr), frame, flags)
}

// mapRecursive installs a page -> frame mapping in the active directory
// using the recursive window. Callers must hold lock.
func mapRecursive(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	dirIndex := page.DirectoryIndex()
	if dirIndex == recursiveSlot {
		return ErrReservedRange
	}

	pde, err := ptePtrFn(pdeAddr(dirIndex))
	if err != nil {
		return err
	}

	if !pde.HasFlags(FlagPresent) {
		tableAddr, _, err := pool.alloc()
		if err != nil {
			return err
		}

		*pde = 0
		pde.SetFrame(mm.FrameFromAddress(tableAddr))
		pde.SetFlags(FlagPresent | FlagRW)

		// The table window for this slot now points somewhere else.
		flushTLBEntryFn(tableWindowAddr(dirIndex))
	}

	pte, err := ptePtrFn(pteAddr(page))
	if err != nil {
		return err
	}

	*pte = 0
	pte.SetFrame(frame)
	pte.SetFlags(FlagPresent | flags)

	flushTLBEntryFn(page.Address())
	return nil
}

// Unmap removes the mapping for the page that contains virtAddr from the
// active directory and invalidates its TLB entry. Page tables are never
// released.
func Unmap(virtAddr uintptr) *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	if !pagingEnabledFn() {
		return ErrPagingDisabled
	}

	page := mm.PageFromAddress(virtAddr)
	if page.DirectoryIndex() == recursiveSlot {
		return ErrReservedRange
	}

	pte, err := lookupEntry(page)
	if err != nil {
		return err
	}

	pte.ClearFlags(FlagPresent)
	flushTLBEntryFn(page.Address())
	return nil
}
