package vmm

import (
	"gopher386/kernel"
	"gopher386/kernel/mm"
)

// Mapping describes a present leaf entry.
type Mapping struct {
	VirtAddr uintptr
	PhysAddr uintptr
	Flags    PageTableEntryFlag
}

// VisitMappings invokes fn for every present page mapped by pd in
// ascending virtual address order until fn returns false. The recursive
// window is not reported. Once paging is enabled only the active directory
// can be visited and it is read through the recursive mapping.
//
// The paging lock is held while fn runs, so fn must not call back into
// this package; doing so spins forever.
func VisitMappings(pd *PageDirectory, fn func(Mapping) bool) *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	var (
		pdeFn   func(int) (*pageTableEntry, *kernel.Error)
		tableFn func(int, *pageTableEntry) (*pageTable, *kernel.Error)
	)

	switch {
	case !pagingEnabledFn():
		pdeFn = func(dirIndex int) (*pageTableEntry, *kernel.Error) {
			return &pd.entries[dirIndex], nil
		}
		tableFn = func(_ int, pde *pageTableEntry) (*pageTable, *kernel.Error) {
			return physTableFn(pde.Frame().Address())
		}
	case activePDTFn() == pd.physAddr:
		pdeFn = func(dirIndex int) (*pageTableEntry, *kernel.Error) {
			return ptePtrFn(pdeAddr(dirIndex))
		}
		tableFn = func(dirIndex int, _ *pageTableEntry) (*pageTable, *kernel.Error) {
			// The first entry of the window is backed by the whole table.
			physAddr, err := mmuTranslate(tableWindowAddr(dirIndex))
			if err != nil {
				return nil, err
			}
			return physTableFn(physAddr)
		}
	default:
		return ErrInactiveDirectory
	}

	for dirIndex := 0; dirIndex < recursiveSlot; dirIndex++ {
		pde, err := pdeFn(dirIndex)
		if err != nil {
			return err
		}
		if !pde.HasFlags(FlagPresent) {
			continue
		}

		table, err := tableFn(dirIndex, pde)
		if err != nil {
			return err
		}

		for tableIndex := range table {
			pte := table[tableIndex]
			if !pte.HasFlags(FlagPresent) {
				continue
			}

			page := mm.Page(dirIndex<<mm.TableIndexBits | tableIndex)
			if !fn(Mapping{VirtAddr: page.Address(), PhysAddr: pte.Frame().Address(), Flags: pte.Flags()}) {
				return nil
			}
		}
	}

	return nil
}
