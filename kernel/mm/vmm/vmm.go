// Package vmm builds the i386 two-level paging structures during kernel
// bring-up and manages them once paging is enabled.
//
// Before paging is enabled the directory and its tables are reached through
// their physical addresses (identity assumption). InstallRecursiveMapping
// points the last directory slot back at the directory so that, after
// LoadDirectory and EnablePaging, the directory is always visible at
// 0xfffff000 and table i at 0xffc00000 + i*4K. From that point on every
// lookup or change goes through those virtual addresses.
package vmm

import (
	"gopher386/kernel"
	"gopher386/kernel/cpu"
	"gopher386/kernel/mm"
	"gopher386/kernel/sync"
)

var (
	// the following functions are mocked by tests.
	flushTLBEntryFn = cpu.FlushTLBEntry
	switchPDTFn     = cpu.SwitchPDT
	activePDTFn     = cpu.ActivePDT
	enablePagingFn  = cpu.EnablePaging
	pagingEnabledFn = cpu.PagingEnabled
	resetCPUFn      = cpu.Reset
	memsetFn        = kernel.Memset
	physTableFn     = physTable

	// ptePtrFn returns the entry stored at the supplied virtual address
	// by dereferencing it through the MMU.
	ptePtrFn = mmuEntry

	// lock serializes every operation that reads or mutates the paging
	// structures.
	lock sync.Spinlock

	// kernelPDT is the directory set up by Init.
	kernelPDT PageDirectory

	// loadedPDT is the directory most recently passed to LoadDirectory.
	loadedPDT *PageDirectory

	pool tablePool
)

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrOutOfTables is returned when a page table is needed and the
	// table pool is exhausted.
	ErrOutOfTables = &kernel.Error{Module: "vmm", Message: "page table pool exhausted"}

	// ErrUnaligned is returned when a physical or virtual address that
	// must be page-aligned is not.
	ErrUnaligned = &kernel.Error{Module: "vmm", Message: "address is not page-aligned"}

	// ErrPagingDisabled is returned by operations that require the
	// recursive mapping to be live.
	ErrPagingDisabled = &kernel.Error{Module: "vmm", Message: "paging is not enabled"}

	// ErrPagingEnabled is returned by bring-up operations called after
	// paging has been enabled.
	ErrPagingEnabled = &kernel.Error{Module: "vmm", Message: "operation not permitted after paging is enabled"}

	// ErrNoRecursiveMapping is returned by LoadDirectory if the directory
	// does not map itself in its last slot.
	ErrNoRecursiveMapping = &kernel.Error{Module: "vmm", Message: "page directory has no recursive mapping"}

	// ErrRecursiveMappingExists is returned by InstallRecursiveMapping if
	// the last directory slot is already in use.
	ErrRecursiveMappingExists = &kernel.Error{Module: "vmm", Message: "recursive mapping already installed"}

	// ErrNoActiveDirectory is returned by EnablePaging if no directory has
	// been loaded.
	ErrNoActiveDirectory = &kernel.Error{Module: "vmm", Message: "no page directory loaded"}

	// ErrInactiveDirectory is returned when mapping into a directory other
	// than the active one after paging is enabled.
	ErrInactiveDirectory = &kernel.Error{Module: "vmm", Message: "page directory is not active"}

	// ErrReservedRange is returned when mapping a page inside the 4M
	// window used by the recursive mapping.
	ErrReservedRange = &kernel.Error{Module: "vmm", Message: "virtual address is reserved for the recursive mapping"}

	errInvalidLayout       = &kernel.Error{Module: "vmm", Message: "paging arena must be page-aligned, non-empty, non-overlapping and below 4G"}
	errOutsideAddressSpace = &kernel.Error{Module: "vmm", Message: "address lies outside the 32-bit address space"}
)

// Layout describes where the paging structures live in physical memory.
type Layout struct {
	// DirectoryAddr is the page-aligned physical address of the kernel
	// page directory.
	DirectoryAddr uintptr

	// TablePoolAddr is the page-aligned physical address of the first
	// page table in the pool.
	TablePoolAddr uintptr

	// TablePoolSize is the number of page tables in the pool. Each table
	// maps 4M of virtual address space.
	TablePoolSize int
}

// DefaultLayout places the directory at 2M followed by a pool of 64 tables.
func DefaultLayout() Layout {
	return Layout{
		DirectoryAddr: 0x00200000,
		TablePoolAddr: 0x00201000,
		TablePoolSize: 64,
	}
}

func (l Layout) valid() bool {
	if l.TablePoolSize <= 0 || !mm.IsAligned(l.DirectoryAddr, mm.PageSize) || !mm.IsAligned(l.TablePoolAddr, mm.PageSize) {
		return false
	}

	dirEnd := uint64(l.DirectoryAddr) + uint64(mm.PageSize)
	poolEnd := uint64(l.TablePoolAddr) + uint64(l.TablePoolSize)<<mm.PageShift
	if dirEnd > mm.AddressSpaceLimit || poolEnd > mm.AddressSpaceLimit {
		return false
	}

	return dirEnd <= uint64(l.TablePoolAddr) || poolEnd <= uint64(l.DirectoryAddr)
}

// Init places the kernel page directory and the page table pool at the
// physical addresses described by layout, clears them and resets the
// processor's paging state. Any previous directory, table or mapping is
// discarded.
func Init(layout Layout) *kernel.Error {
	if !layout.valid() {
		return errInvalidLayout
	}

	lock.Acquire()
	defer lock.Release()

	physRegions = []physRegion{
		{base: layout.DirectoryAddr, tables: make([]pageTable, 1)},
		{base: layout.TablePoolAddr, tables: make([]pageTable, layout.TablePoolSize)},
	}

	kernelPDT = PageDirectory{
		physAddr: layout.DirectoryAddr,
		entries:  &physRegions[0].tables[0],
	}
	pool = tablePool{region: &physRegions[1]}
	loadedPDT = nil

	resetCPUFn()
	return nil
}

// KernelDirectory returns the page directory set up by Init.
func KernelDirectory() *PageDirectory {
	return &kernelPDT
}

// LoadDirectory loads the physical address of pd into the translation root
// register (CR3). The directory must already map itself in its last slot.
func LoadDirectory(pd *PageDirectory) *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	if !pd.hasRecursiveMapping() {
		return ErrNoRecursiveMapping
	}

	switchPDTFn(pd.physAddr)
	loadedPDT = pd
	return nil
}

// EnablePaging sets the protection-enable and paging-enable bits in CR0.
// LoadDirectory must be called first. Paging cannot be disabled again.
func EnablePaging() *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	if loadedPDT == nil {
		return ErrNoActiveDirectory
	}

	enablePagingFn()
	return nil
}

// Stats describes the state of the paging structures.
type Stats struct {
	DirectoryAddr  uintptr
	TablesUsed     int
	TablesCapacity int
	PagingEnabled  bool
}

// GetStats returns the current table pool usage and paging state.
func GetStats() Stats {
	lock.Acquire()
	defer lock.Release()

	return Stats{
		DirectoryAddr:  kernelPDT.physAddr,
		TablesUsed:     pool.used,
		TablesCapacity: pool.capacity(),
		PagingEnabled:  pagingEnabledFn(),
	}
}
