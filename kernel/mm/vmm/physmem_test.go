package vmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhysTable(t *testing.T) {
	initVMM(t, DefaultLayout())

	specs := []struct {
		name     string
		physAddr uintptr
		expect   *pageTable
	}{
		{"directory", 0x00200000, &physRegions[0].tables[0]},
		{"first pool table", 0x00201000, &physRegions[1].tables[0]},
		{"last pool table", 0x00240000, &physRegions[1].tables[63]},
		{"past the pool", 0x00241000, nil},
		{"below the directory", 0x001ff000, nil},
		{"unaligned", 0x00201004, nil},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			table, err := physTable(spec.physAddr)
			if spec.expect == nil {
				assert.Equal(t, errBadPhysAddr, err)
				assert.Nil(t, table)
				return
			}
			require.Nil(t, err)
			assert.True(t, table == spec.expect)
		})
	}
}

func TestPhysEntry(t *testing.T) {
	initVMM(t, DefaultLayout())

	entry, err := physEntry(0x00200000 + 4*recursiveSlot)
	require.Nil(t, err)
	assert.True(t, entry == &KernelDirectory().entries[recursiveSlot])

	_, err = physEntry(0x00200002)
	assert.Equal(t, errBadPhysAddr, err)

	_, err = physEntry(0x00100000)
	assert.Equal(t, errBadPhysAddr, err)
}

func TestTablePoolAlloc(t *testing.T) {
	initVMM(t, Layout{DirectoryAddr: 0x00200000, TablePoolAddr: 0x00201000, TablePoolSize: 2})

	// Leave garbage behind to make sure tables are cleared when handed out.
	physRegions[1].tables[1][17] = 0xdeadbeef

	addr, table, err := pool.alloc()
	require.Nil(t, err)
	assert.Equal(t, uintptr(0x00201000), addr)
	assert.True(t, table == &physRegions[1].tables[0])

	addr, table, err = pool.alloc()
	require.Nil(t, err)
	assert.Equal(t, uintptr(0x00202000), addr)
	assert.Zero(t, table[17])

	_, _, err = pool.alloc()
	assert.Equal(t, ErrOutOfTables, err)
	assert.Equal(t, 2, pool.used)
	assert.Equal(t, 2, pool.capacity())
}

func TestTablePoolAllocClearsWithMemset(t *testing.T) {
	defer func(orig func(uintptr, byte, uintptr)) {
		memsetFn = orig
	}(memsetFn)

	initVMM(t, DefaultLayout())

	var sizes []uintptr
	memsetFn = func(_ uintptr, value byte, size uintptr) {
		assert.Zero(t, value)
		sizes = append(sizes, size)
	}

	_, _, err := pool.alloc()
	require.Nil(t, err)
	assert.Equal(t, []uintptr{4096}, sizes)
}
