package vmm

import (
	"gopher386/kernel"
	"gopher386/kernel/cpu"
	"gopher386/kernel/mm"
)

var (
	// ErrPageFault is raised by the page walk when a directory or table
	// entry on the path of a virtual address is not present.
	ErrPageFault = &kernel.Error{Module: "vmm", Message: "page fault"}

	lookupTLBFn = cpu.LookupTLB
	fillTLBFn   = cpu.FillTLB
)

// mmuTranslate performs the address translation that the processor applies
// to every memory access. With paging disabled virtual addresses are
// physical addresses. Otherwise cached translations are used as-is, even if
// the entries they were built from have changed since; a miss walks
// CR3 -> directory entry -> table entry and caches the result.
func mmuTranslate(virtAddr uintptr) (uintptr, *kernel.Error) {
	if !pagingEnabledFn() {
		return virtAddr, nil
	}

	offset := mm.PageOffset(virtAddr)
	pageAddr := virtAddr - offset
	if frameAddr, ok := lookupTLBFn(pageAddr); ok {
		return frameAddr + offset, nil
	}

	pde, err := physEntry(activePDTFn() + uintptr(mm.DirectoryIndex(virtAddr))<<mm.PointerShift)
	if err != nil {
		return 0, err
	}
	if !pde.HasFlags(FlagPresent) {
		return 0, ErrPageFault
	}

	pte, err := physEntry(pde.Frame().Address() + uintptr(mm.TableIndex(virtAddr))<<mm.PointerShift)
	if err != nil {
		return 0, err
	}
	if !pte.HasFlags(FlagPresent) {
		return 0, ErrPageFault
	}

	frameAddr := pte.Frame().Address()
	fillTLBFn(pageAddr, frameAddr)
	return frameAddr + offset, nil
}

// mmuEntry dereferences virtAddr as a pointer to a paging structure entry.
func mmuEntry(virtAddr uintptr) (*pageTableEntry, *kernel.Error) {
	physAddr, err := mmuTranslate(virtAddr)
	if err != nil {
		return nil, err
	}

	return physEntry(physAddr)
}
