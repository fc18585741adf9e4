// Package config describes the machine that the memory bring-up runs on:
// where the frame pool and the paging structures live, which physical
// regions are identity mapped and how the allocator is exercised once paging
// is on.
package config

import (
	"strconv"

	"gopher386/kernel/mm"
	"gopher386/kernel/mm/vmm"

	"github.com/BurntSushi/toml"
	units "github.com/docker/go-units"
	"github.com/pkg/errors"
)

// Address is a 32-bit physical or virtual address. In TOML it is written as
// a string or integer in any base accepted by strconv ("0xb8000").
type Address uintptr

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 0, 32)
	if err != nil {
		return errors.Wrapf(err, "invalid address %q", text)
	}
	*a = Address(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a Address) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// Size is a byte count written in TOML with a binary unit suffix ("2MiB").
type Size uint64

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	v, err := units.RAMInBytes(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid size %q", text)
	}
	if v < 0 {
		return errors.Errorf("invalid size %q: negative", text)
	}
	*s = Size(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Size) String() string {
	return units.BytesSize(float64(s))
}

// FramePool describes the memory handed out by the frame allocator.
type FramePool struct {
	Count int     `toml:"count"`
	Size  Size    `toml:"size"`
	Base  Address `toml:"base"`
}

// End returns the first physical address past the pool.
func (p FramePool) End() uint64 {
	return uint64(p.Base) + uint64(p.Count)*uint64(p.Size)
}

// Paging describes where the page directory and the page table pool live.
type Paging struct {
	Directory Address `toml:"directory"`
	TablePool Address `toml:"table_pool"`
	Tables    int     `toml:"tables"`
}

// Layout converts the paging arena to the form expected by vmm.Init.
func (p Paging) Layout() vmm.Layout {
	return vmm.Layout{
		DirectoryAddr: uintptr(p.Directory),
		TablePoolAddr: uintptr(p.TablePool),
		TablePoolSize: p.Tables,
	}
}

// Region is a physical range [Start, End) that is identity mapped before
// paging is enabled.
type Region struct {
	Name  string  `toml:"name"`
	Start Address `toml:"start"`
	End   Address `toml:"end"`
}

// Exercise describes the allocation that is mapped and verified after
// paging is enabled.
type Exercise struct {
	Frames   int     `toml:"frames"`
	VirtAddr Address `toml:"virt_addr"`
}

// Machine is the complete machine description.
type Machine struct {
	Frames   FramePool `toml:"frames"`
	Paging   Paging    `toml:"paging"`
	Regions  []Region  `toml:"regions"`
	Exercise Exercise  `toml:"exercise"`

	// Probe lists virtual addresses that are translated once the bring-up
	// completes.
	Probe []Address `toml:"probe"`
}

// Default returns the reference machine: 128 frames of 2MiB starting at 0,
// the paging structures inside the kernel image and the kernel image, boot
// stack and VGA text buffer identity mapped in that order.
func Default() *Machine {
	return &Machine{
		Frames: FramePool{
			Count: 128,
			Size:  2 * units.MiB,
			Base:  0,
		},
		Paging: Paging{
			Directory: 0x00200000,
			TablePool: 0x00201000,
			Tables:    64,
		},
		Regions: []Region{
			{Name: "kernel", Start: 0x00100000, End: 0x00300000},
			{Name: "stack", Start: 0x00300000, End: 0x00310000},
			{Name: "vga", Start: 0x000b8000, End: 0x000b9000},
		},
		Exercise: Exercise{
			Frames:   4,
			VirtAddr: 0x40000000,
		},
	}
}

// Load reads the TOML file at path on top of the default machine and
// validates the result. Keys that do not correspond to a known setting are
// rejected.
func Load(path string) (*Machine, error) {
	m := Default()

	md, err := toml.DecodeFile(path, m)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("%s: unknown setting %q", path, undecoded[0].String())
	}

	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validating %s", path)
	}

	return m, nil
}

const recursiveWindowStart = uint64(0xffc00000)

// Validate checks that the machine can be brought up.
func (m *Machine) Validate() error {
	f := m.Frames
	switch {
	case f.Count <= 0:
		return errors.Errorf("frames: count must be positive, got %d", f.Count)
	case f.Size < Size(mm.PageSize) || f.Size&(f.Size-1) != 0:
		return errors.Errorf("frames: size %s is not a power of two of at least 4KiB", f.Size)
	case uint64(f.Base)%uint64(f.Size) != 0:
		return errors.Errorf("frames: base %s is not aligned to %s", f.Base, f.Size)
	case f.End() > mm.AddressSpaceLimit:
		return errors.Errorf("frames: pool ends past 4GiB")
	}

	p := m.Paging
	switch {
	case p.Tables <= 0:
		return errors.Errorf("paging: tables must be positive, got %d", p.Tables)
	case !mm.IsAligned(uintptr(p.Directory), mm.PageSize):
		return errors.Errorf("paging: directory %s is not page-aligned", p.Directory)
	case !mm.IsAligned(uintptr(p.TablePool), mm.PageSize):
		return errors.Errorf("paging: table pool %s is not page-aligned", p.TablePool)
	}

	dirEnd := uint64(p.Directory) + uint64(mm.PageSize)
	poolEnd := uint64(p.TablePool) + uint64(p.Tables)*uint64(mm.PageSize)
	if dirEnd > mm.AddressSpaceLimit || poolEnd > mm.AddressSpaceLimit {
		return errors.Errorf("paging: arena ends past 4GiB")
	}
	if dirEnd > uint64(p.TablePool) && poolEnd > uint64(p.Directory) {
		return errors.Errorf("paging: directory %s overlaps the table pool", p.Directory)
	}

	for _, r := range m.Regions {
		if r.Start >= r.End {
			return errors.Errorf("regions: %q is empty", r.Name)
		}
		if uint64(r.End) > mm.AddressSpaceLimit {
			return errors.Errorf("regions: %q ends past 4GiB", r.Name)
		}
		if uint64(mm.AlignUp(uintptr(r.End), mm.PageSize)) > recursiveWindowStart {
			return errors.Errorf("regions: %q overlaps the recursive mapping window", r.Name)
		}
	}

	e := m.Exercise
	switch {
	case e.Frames < 0 || e.Frames > f.Count:
		return errors.Errorf("exercise: frames must be between 0 and %d, got %d", f.Count, e.Frames)
	case !mm.IsAligned(uintptr(e.VirtAddr), mm.PageSize):
		return errors.Errorf("exercise: virtual address %s is not page-aligned", e.VirtAddr)
	case uint64(e.VirtAddr)+uint64(e.Frames)*uint64(f.Size) > recursiveWindowStart:
		return errors.Errorf("exercise: mapping at %s overlaps the recursive mapping window", e.VirtAddr)
	}

	for _, addr := range m.Probe {
		if uint64(addr) >= mm.AddressSpaceLimit {
			return errors.Errorf("probe: %s lies outside the 32-bit address space", addr)
		}
	}

	return nil
}
