package vmm

import (
	"unsafe"

	"gopher386/kernel"
	"gopher386/kernel/mm"
)

var (
	errBadPhysAddr = &kernel.Error{Module: "vmm", Message: "physical address does not point to a paging structure"}
)

// physRegion is a physically contiguous block of 4K paging structures
// together with the memory that backs it.
type physRegion struct {
	base   uintptr
	tables []pageTable
}

func (r *physRegion) contains(physAddr uintptr) bool {
	return physAddr >= r.base && (physAddr-r.base)>>mm.PageShift < uintptr(len(r.tables))
}

// physRegions lists every region of physical memory that holds paging
// structures: the page directory and the table pool.
var physRegions []physRegion

// physTable returns the paging structure located at physAddr. The address
// must be page-aligned and fall inside a known region; this is the only
// place where a physical address is turned into a reference.
func physTable(physAddr uintptr) (*pageTable, *kernel.Error) {
	if !mm.IsAligned(physAddr, mm.PageSize) {
		return nil, errBadPhysAddr
	}

	for index := range physRegions {
		region := &physRegions[index]
		if region.contains(physAddr) {
			return &region.tables[(physAddr-region.base)>>mm.PageShift], nil
		}
	}

	return nil, errBadPhysAddr
}

// physEntry returns the directory or table entry located at physAddr.
func physEntry(physAddr uintptr) (*pageTableEntry, *kernel.Error) {
	if !mm.IsAligned(physAddr, 1<<mm.PointerShift) {
		return nil, errBadPhysAddr
	}

	table, err := physTableFn(mm.AlignDown(physAddr, mm.PageSize))
	if err != nil {
		return nil, err
	}

	return &table[mm.PageOffset(physAddr)>>mm.PointerShift], nil
}

// tablePool hands out page tables from a fixed region. Tables are never
// returned to the pool.
type tablePool struct {
	region *physRegion
	used   int
}

// alloc returns the physical address of the next unused table after
// clearing its contents, or ErrOutOfTables if the pool is exhausted.
func (p *tablePool) alloc() (uintptr, *pageTable, *kernel.Error) {
	if p.region == nil || p.used >= len(p.region.tables) {
		return 0, nil, ErrOutOfTables
	}

	table := &p.region.tables[p.used]
	physAddr := p.region.base + uintptr(p.used)<<mm.PageShift
	p.used++

	memsetFn(uintptr(unsafe.Pointer(table)), 0, mm.PageSize)
	return physAddr, table, nil
}

func (p *tablePool) capacity() int {
	if p.region == nil {
		return 0
	}
	return len(p.region.tables)
}
