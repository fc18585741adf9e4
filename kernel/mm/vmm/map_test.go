package vmm

import (
	"testing"

	"gopher386/kernel"
	"gopher386/kernel/mm"
	"gopher386/kernel/mm/pmm"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ FrameList = pmm.Run{}

func TestMapPagesSplitsLargeFrames(t *testing.T) {
	pd := initVMM(t, DefaultLayout())

	res, err := MapPages(0x00100000, frameSlice{addrs: []uintptr{0x00200000}, size: 2 << 20}, pd)
	require.Nil(t, err)
	assert.Equal(t, MapResult{Start: 0x00100000, Mapped: 512}, res)
	assert.Equal(t, 1, GetStats().TablesUsed)

	pde := pd.entries[0]
	require.True(t, pde.HasFlags(FlagPresent|FlagRW))
	assert.False(t, pde.HasAnyFlag(FlagUserAccessible|FlagPageSize))

	table, kerr := physTable(pde.Frame().Address())
	require.Nil(t, kerr)

	for index, pte := range table {
		if index < 256 || index > 767 {
			if pte != 0 {
				t.Fatalf("expected entry %d to be empty; got %#x", index, pte)
			}
			continue
		}

		if exp, got := mm.Frame(0x200+index-256), pte.Frame(); got != exp {
			t.Fatalf("expected entry %d to point to frame %#x; got %#x", index, exp, got)
		}
		if !pte.HasFlags(FlagPresent | FlagRW) {
			t.Fatalf("expected entry %d to be present and writable", index)
		}
	}
}

func TestMapPagesAlignsStart(t *testing.T) {
	pd := initVMM(t, DefaultLayout())

	res, err := MapPages(0x40000abc, frameSlice{addrs: []uintptr{0x00500000, 0x00700000}, size: mm.PageSize}, pd)
	require.Nil(t, err)
	assert.Equal(t, uintptr(0x40000000), res.Start)
	assert.Equal(t, 2, res.Mapped)

	table, kerr := physTable(pd.entries[256].Frame().Address())
	require.Nil(t, kerr)
	assert.Equal(t, mm.Frame(0x500), table[0].Frame())
	assert.Equal(t, mm.Frame(0x700), table[1].Frame())
}

func TestMapPagesReusesExistingTables(t *testing.T) {
	pd := initVMM(t, DefaultLayout())

	_, err := MapPages(0x00000000, frameSlice{addrs: []uintptr{0x00000000}, size: mm.PageSize}, pd)
	require.Nil(t, err)
	_, err = MapPages(0x003ff000, frameSlice{addrs: []uintptr{0x00800000}, size: mm.PageSize}, pd)
	require.Nil(t, err)

	assert.Equal(t, 1, GetStats().TablesUsed)
}

func TestMapPagesReportsExhaustedPool(t *testing.T) {
	pd := initVMM(t, Layout{DirectoryAddr: 0x00200000, TablePoolAddr: 0x00201000, TablePoolSize: 1})

	// Pages 0x3ff and 0x400 live under different directory slots; only the
	// first slot can get a table.
	frames := frameSlice{addrs: []uintptr{0x00800000}, size: 3 * mm.PageSize}
	res, err := MapPages(0x003ff000, frames, pd)
	assert.Equal(t, ErrOutOfTables, err)
	assert.Equal(t, 1, res.Mapped)
	assert.Equal(t, 2, res.FailedPages())

	exp := []Range{{Start: 0x00400000, Pages: 2}}
	if diff := cmp.Diff(exp, res.Failed); diff != "" {
		t.Fatalf("unexpected failed ranges (-want +got):\n%s", diff)
	}

	// Slots with a table keep accepting pages after the pool runs dry.
	res, err = MapPages(0x00001000, frameSlice{addrs: []uintptr{0x00900000}, size: mm.PageSize}, pd)
	assert.Nil(t, err)
	assert.Equal(t, 1, res.Mapped)
}

func TestMapPagesFailedRangesAreCoalesced(t *testing.T) {
	pd := initVMM(t, Layout{DirectoryAddr: 0x00200000, TablePoolAddr: 0x00201000, TablePoolSize: 1})

	// Slot 1 gets the only table so pages in slots 0 and 2 fail on either
	// side of it.
	_, err := MapPages(0x00400000, frameSlice{addrs: []uintptr{0x00800000}, size: mm.PageSize}, pd)
	require.Nil(t, err)

	res, err := MapPages(0x003fe000, frameSlice{addrs: []uintptr{0x00a00000}, size: 4 * mm.PageSize}, pd)
	assert.Equal(t, ErrOutOfTables, err)

	exp := MapResult{
		Start:  0x003fe000,
		Mapped: 2,
		Failed: []Range{{Start: 0x003fe000, Pages: 2}},
	}
	if diff := cmp.Diff(exp, res); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}

	res, err = MapPages(0x007ff000, frameSlice{addrs: []uintptr{0x00a00000}, size: 3 * mm.PageSize}, pd)
	assert.Equal(t, ErrOutOfTables, err)

	exp = MapResult{
		Start:  0x007ff000,
		Mapped: 1,
		Failed: []Range{{Start: 0x00800000, Pages: 2}},
	}
	if diff := cmp.Diff(exp, res); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestMapPagesRejectsRecursiveWindow(t *testing.T) {
	pd := initVMM(t, DefaultLayout())

	res, err := MapPages(0xffc00000, frameSlice{addrs: []uintptr{0x00800000}, size: 2 * mm.PageSize}, pd)
	assert.Equal(t, ErrReservedRange, err)
	assert.Equal(t, []Range{{Start: 0xffc00000, Pages: 2}}, res.Failed)
	assert.Zero(t, pd.entries[recursiveSlot])
	assert.Zero(t, GetStats().TablesUsed)
}

func TestMapPagesAfterPagingEnabled(t *testing.T) {
	pd := bootVMM(t)

	alloc, kerr := pmm.NewAllocator(4, pmm.FrameSize, 0x00400000)
	require.Nil(t, kerr)
	alloc.Init()

	run, kerr := alloc.Allocate(2)
	require.Nil(t, kerr)
	require.Equal(t, []uintptr{0x00a00000, 0x00800000}, run.Addresses())

	res, err := MapPages(0x40000000, run, pd)
	require.Nil(t, err)
	assert.Equal(t, 1024, res.Mapped)
	assert.Equal(t, 2, GetStats().TablesUsed)

	for _, spec := range []struct{ virt, phys uintptr }{
		{0x40000000, 0x00a00000},
		{0x401ff123, 0x00bff123},
		{0x40200000, 0x00800000},
		{0x403fffff, 0x009fffff},
	} {
		got, err := Translate(spec.virt)
		require.Nil(t, err)
		assert.Equal(t, spec.phys, got, "translating %#x", spec.virt)
	}
}

func TestMapPagesInactiveDirectory(t *testing.T) {
	bootVMM(t)

	addr, table, err := pool.alloc()
	require.Nil(t, err)
	other := &PageDirectory{physAddr: addr, entries: table}

	res, err := MapPages(0x40000000, frameSlice{addrs: []uintptr{0x00800000}, size: mm.PageSize}, other)
	assert.Equal(t, ErrInactiveDirectory, err)
	assert.Zero(t, res.Mapped)
	assert.Zero(t, other.entries[256])
}

func TestIdentityMapRange(t *testing.T) {
	pd := initVMM(t, DefaultLayout())

	specs := []struct {
		start, end uintptr
		expStart   uintptr
		expMapped  int
	}{
		{0x000b8123, 0x000b8fff, 0x000b8000, 1},
		{0x00100000, 0x00300000, 0x00100000, 512},
		{0x00300000, 0x00310001, 0x00300000, 17},
		{0x00400000, 0x00400000, 0x00400000, 0},
	}

	for _, spec := range specs {
		res, err := IdentityMapRange(spec.start, spec.end, pd)
		require.Nil(t, err)
		assert.Equal(t, spec.expStart, res.Start)
		assert.Equal(t, spec.expMapped, res.Mapped)
	}

	table, err := physTable(pd.entries[0].Frame().Address())
	require.Nil(t, err)
	for _, addr := range []uintptr{0x000b8000, 0x00100000, 0x002ff000, 0x00310000} {
		pte := table[mm.TableIndex(addr)]
		assert.True(t, pte.HasFlags(FlagPresent|FlagRW))
		assert.Equal(t, addr, pte.Frame().Address())
	}
	assert.Zero(t, table[mm.TableIndex(0x00311000)])
}

func TestMapResultRecord(t *testing.T) {
	var res MapResult

	assert.Nil(t, res.record(0x1000, nil))
	assert.Equal(t, ErrOutOfTables, res.record(0x2000, ErrOutOfTables))
	res.record(0x3000, ErrOutOfTables)
	res.record(0x5000, ErrOutOfTables)
	res.record(0x6000, nil)

	exp := MapResult{
		Mapped: 2,
		Failed: []Range{
			{Start: 0x2000, Pages: 2},
			{Start: 0x5000, Pages: 1},
		},
	}
	if diff := cmp.Diff(exp, res); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, res.FailedPages())
	assert.Equal(t, uint64(0x4000), res.Failed[0].End())
}

func TestMapResultVisitMapped(t *testing.T) {
	res := MapResult{Start: 0x1000}
	for _, spec := range []struct {
		addr uintptr
		err  *kernel.Error
	}{
		{0x1000, nil},
		{0x2000, ErrOutOfTables},
		{0x3000, ErrOutOfTables},
		{0x4000, nil},
		{0x5000, nil},
		{0x6000, ErrOutOfTables},
		{0x7000, nil},
	} {
		res.record(spec.addr, spec.err)
	}

	var visited []uintptr
	res.VisitMapped(func(virtAddr uintptr) bool {
		visited = append(visited, virtAddr)
		return true
	})
	assert.Equal(t, []uintptr{0x1000, 0x4000, 0x5000, 0x7000}, visited)

	visited = visited[:0]
	res.VisitMapped(func(virtAddr uintptr) bool {
		visited = append(visited, virtAddr)
		return len(visited) < 2
	})
	assert.Equal(t, []uintptr{0x1000, 0x4000}, visited)

	var none MapResult
	none.VisitMapped(func(uintptr) bool {
		t.Fatal("unexpected page in an empty result")
		return false
	})
}
