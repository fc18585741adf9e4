package mm

const (
	// PointerShift is equal to log2 of the size of a paging structure
	// entry. i386 directory and table entries are 32 bits wide.
	PointerShift = uintptr(2)

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// TableIndexBits is the number of virtual address bits used to index
	// the page directory and each page table.
	TableIndexBits = uintptr(10)

	// EntriesPerTable is the number of entries in the page directory and
	// in every page table.
	EntriesPerTable = 1 << TableIndexBits

	// DirectoryShift is the shift that extracts the directory index (bits
	// 22-31) from a virtual address.
	DirectoryShift = PageShift + TableIndexBits

	// AddressSpaceLimit is the first address that cannot be expressed with
	// 32 bits.
	AddressSpaceLimit = uint64(1) << 32
)
