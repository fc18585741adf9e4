package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopher386/kernel/mm/vmm"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "machine.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	m := Default()
	require.NoError(t, m.Validate())
	assert.Equal(t, vmm.DefaultLayout(), m.Paging.Layout())
	assert.Equal(t, uint64(256<<20), m.Frames.End())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
probe = ["0xb8000", "0x40001000"]

[frames]
count = 16
size = "4MiB"
base = "0x01000000"

[paging]
directory = "0x00400000"
table_pool = 0x00401000
tables = 8

[[regions]]
name = "kernel"
start = "0x00100000"
end = "0x00500000"

[exercise]
frames = 2
virt_addr = "0x80000000"
`)

	m, err := Load(path)
	require.NoError(t, err)

	exp := &Machine{
		Frames:   FramePool{Count: 16, Size: 4 << 20, Base: 0x01000000},
		Paging:   Paging{Directory: 0x00400000, TablePool: 0x00401000, Tables: 8},
		Regions:  []Region{{Name: "kernel", Start: 0x00100000, End: 0x00500000}},
		Exercise: Exercise{Frames: 2, VirtAddr: 0x80000000},
		Probe:    []Address{0xb8000, 0x40001000},
	}
	if diff := cmp.Diff(exp, m); diff != "" {
		t.Fatalf("unexpected machine (-want +got):\n%s", diff)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	m, err := Load(writeConfig(t, "[exercise]\nframes = 8\n"))
	require.NoError(t, err)

	exp := Default()
	exp.Exercise.Frames = 8
	if diff := cmp.Diff(exp, m); diff != "" {
		t.Fatalf("unexpected machine (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	specs := []struct {
		name     string
		contents string
		expErr   string
	}{
		{"syntax", "[frames\n", "decoding"},
		{"unknown key", "[frames]\ncolor = 3\n", `unknown setting "frames.color"`},
		{"bad size", "[frames]\nsize = \"lots\"\n", `invalid size "lots"`},
		{"bad address", "[paging]\ndirectory = \"0xzz\"\n", `invalid address "0xzz"`},
		{"address past 4G", "[paging]\ndirectory = \"0x100000000\"\n", "invalid address"},
		{"invalid machine", "[paging]\ntables = 0\n", "tables must be positive"},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, spec.contents))
			require.Error(t, err)
			assert.Contains(t, err.Error(), spec.expErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	specs := []struct {
		name   string
		mutate func(*Machine)
		expErr string
	}{
		{"no frames", func(m *Machine) { m.Frames.Count = 0 }, "count must be positive"},
		{"frame size not a power of two", func(m *Machine) { m.Frames.Size = 3 << 20 }, "not a power of two"},
		{"frame size below a page", func(m *Machine) { m.Frames.Size = 1024 }, "not a power of two"},
		{"unaligned frame base", func(m *Machine) { m.Frames.Base = 0x1000 }, "is not aligned to 2MiB"},
		{"frame pool past 4G", func(m *Machine) { m.Frames.Count = 4096 }, "pool ends past 4GiB"},
		{"unaligned directory", func(m *Machine) { m.Paging.Directory = 0x00200010 }, "directory 0x200010 is not page-aligned"},
		{"unaligned table pool", func(m *Machine) { m.Paging.TablePool = 0x00201800 }, "table pool 0x201800 is not page-aligned"},
		{"overlapping arena", func(m *Machine) { m.Paging.Directory = 0x00208000 }, "overlaps the table pool"},
		{"arena past 4G", func(m *Machine) { m.Paging.TablePool = 0xfffff000; m.Paging.Tables = 2 }, "arena ends past 4GiB"},
		{"empty region", func(m *Machine) { m.Regions[2].End = m.Regions[2].Start }, `"vga" is empty`},
		{"region in recursive window", func(m *Machine) { m.Regions[0].End = 0xffc00001 }, "recursive mapping window"},
		{"too many exercise frames", func(m *Machine) { m.Exercise.Frames = 129 }, "between 0 and 128"},
		{"unaligned exercise address", func(m *Machine) { m.Exercise.VirtAddr = 0x40000010 }, "not page-aligned"},
		{"exercise in recursive window", func(m *Machine) { m.Exercise.VirtAddr = 0xffa00000 }, "recursive mapping window"},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			m := Default()
			spec.mutate(m)
			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), spec.expErr)
		})
	}
}

func TestAddressAndSizeText(t *testing.T) {
	var a Address
	require.NoError(t, a.UnmarshalText([]byte("0xb8000")))
	assert.Equal(t, Address(0xb8000), a)
	require.NoError(t, a.UnmarshalText([]byte("4096")))
	assert.Equal(t, Address(0x1000), a)

	text, err := Address(0x00200000).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0x200000", string(text))

	var s Size
	require.NoError(t, s.UnmarshalText([]byte("64KiB")))
	assert.Equal(t, Size(64<<10), s)
	require.NoError(t, s.UnmarshalText([]byte("2m")))
	assert.Equal(t, Size(2<<20), s)
	assert.Equal(t, "2MiB", s.String())
}
