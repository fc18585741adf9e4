package vmm

import (
	"gopher386/kernel"
	"gopher386/kernel/mm"
)

// FrameList is a list of physical frames, such as a run returned by the
// frame allocator. Frames may be larger than a page; each one is mapped as a
// sequence of 4K pages.
type FrameList interface {
	// VisitFrames invokes fn with the physical address and size of each
	// frame in order until fn returns false.
	VisitFrames(fn func(physAddr, size uintptr) bool)
}

// Range is a block of consecutive virtual pages.
type Range struct {
	Start uintptr
	Pages int
}

// End returns the first address past the range.
func (r Range) End() uint64 {
	return uint64(r.Start) + uint64(r.Pages)<<mm.PageShift
}

// MapResult reports the outcome of a bulk mapping request.
type MapResult struct {
	// Start is the page-aligned virtual address of the first page.
	Start uintptr

	// Mapped is the number of pages that were mapped.
	Mapped int

	// Failed lists the pages that could not be mapped, coalesced into
	// ranges of consecutive pages.
	Failed []Range
}

// record accounts for the outcome of mapping the page at virtAddr and
// returns err unchanged.
func (res *MapResult) record(virtAddr uintptr, err *kernel.Error) *kernel.Error {
	if err == nil {
		res.Mapped++
		return nil
	}

	if last := len(res.Failed) - 1; last >= 0 && res.Failed[last].End() == uint64(virtAddr) {
		res.Failed[last].Pages++
		return err
	}

	res.Failed = append(res.Failed, Range{Start: virtAddr, Pages: 1})
	return err
}

// VisitMapped invokes fn with the address of every page that was mapped, in
// ascending order, until fn returns false.
func (res *MapResult) VisitMapped(fn func(virtAddr uintptr) bool) {
	var (
		cursor    = uint64(res.Start)
		remaining = res.Mapped
	)

	for _, failed := range res.Failed {
		for ; remaining > 0 && cursor < uint64(failed.Start); cursor += uint64(mm.PageSize) {
			if !fn(uintptr(cursor)) {
				return
			}
			remaining--
		}
		cursor = failed.End()
	}

	for ; remaining > 0; cursor += uint64(mm.PageSize) {
		if !fn(uintptr(cursor)) {
			return
		}
		remaining--
	}
}

// FailedPages returns the total number of pages that could not be mapped.
func (res *MapResult) FailedPages() int {
	var n int
	for _, r := range res.Failed {
		n += r.Pages
	}
	return n
}

// MapPages maps every frame in frames at consecutive virtual pages starting
// at virtAddr rounded down to a page boundary. Each frame is split into 4K
// pages; a 2M frame results in 512 leaf entries. The pages are mapped
// present and writable.
//
// A page that cannot be mapped (e.g. because the table pool is exhausted)
// does not stop the remaining pages from being mapped; it is reported in
// the returned MapResult and the first such error is returned.
func MapPages(virtAddr uintptr, frames FrameList, pd *PageDirectory) (MapResult, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	var (
		res      = MapResult{Start: mm.AlignDown(virtAddr, mm.PageSize)}
		firstErr *kernel.Error
		cursor   = uint64(res.Start)
	)

	frames.VisitFrames(func(physAddr, size uintptr) bool {
		for offset := uintptr(0); offset < size; offset, cursor = offset+mm.PageSize, cursor+uint64(mm.PageSize) {
			var err *kernel.Error
			switch frame := mm.FrameFromAddress(physAddr + offset); {
			case cursor >= mm.AddressSpaceLimit:
				// Nothing past 4G can be mapped; report the rest of the
				// request as a single failed range.
				err = errOutsideAddressSpace
			case !frame.Valid():
				err = errOutsideAddressSpace
			default:
				err = pd.mapPage(mm.Page(cursor>>mm.PageShift), frame, FlagRW)
			}

			if res.record(uintptr(cursor), err) != nil && firstErr == nil {
				firstErr = err
			}
		}
		return true
	})

	return res, firstErr
}

// IdentityMapRange maps every 4K page in [start, end) to the physical frame
// with the same address. start is rounded down and end is rounded up to a
// page boundary.
func IdentityMapRange(start, end uintptr, pd *PageDirectory) (MapResult, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	var (
		res      = MapResult{Start: mm.AlignDown(start, mm.PageSize)}
		firstErr *kernel.Error
		last     = (uint64(end) + uint64(mm.PageSize) - 1) &^ (uint64(mm.PageSize) - 1)
	)

	if last > mm.AddressSpaceLimit {
		last = mm.AddressSpaceLimit
	}

	for cursor := uint64(res.Start); cursor < last; cursor += uint64(mm.PageSize) {
		page := mm.Page(cursor >> mm.PageShift)
		err := pd.mapPage(page, mm.Frame(page), FlagRW)
		if res.record(uintptr(cursor), err) != nil && firstErr == nil {
			firstErr = err
		}
	}

	return res, firstErr
}
