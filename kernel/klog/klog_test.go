package klog

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"gopher386/kernel/kfmt"

	"github.com/stretchr/testify/assert"
)

func TestNewWritesToConsole(t *testing.T) {
	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)
	buf.Reset()

	logger := New("mm", "info")
	logger.Info().Int("frames", 4).Str("vaddr", Addr(0x40000000)).Msg("frames mapped")
	logger.Debug().Msg("suppressed")

	out := buf.String()
	assert.Contains(t, out, "frames mapped")
	assert.Contains(t, out, "frames=4")
	assert.Contains(t, out, "vaddr=0x40000000")
	assert.NotContains(t, out, "suppressed")

	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.True(t, strings.HasPrefix(line, "[mm] "), "line %q is missing the module prefix", line)
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("debug", io.MultiWriter(&buf))
	logger.Debug().Msg("debug line")

	assert.Contains(t, buf.String(), "debug line")
}

func TestAddr(t *testing.T) {
	specs := []struct {
		input uintptr
		exp   string
	}{
		{0xb8000, "0x000b8000"},
		{0xfffff000, "0xfffff000"},
		{0x00200000, "0x00200000"},
		{0, "0x00000000"},
		{0x40000000, "0x40000000"},
	}

	for _, spec := range specs {
		got := Addr(spec.input)
		assert.Equal(t, spec.exp, got)
		assert.Len(t, got, 10)
	}
}
