// Package klog builds the structured logger used by the bring-up sequence.
// Log lines are rendered by a console writer and end up on the kernel
// console through package kfmt.
package klog

import (
	"fmt"
	"io"

	"gopher386/kernel/kfmt"

	"github.com/phuslu/log"
)

// New returns a logger at the given level ("debug", "info", ...) that writes
// to the kernel console. Every console line is prefixed with "[module] ".
func New(module, level string) *log.Logger {
	return NewWithWriter(level, &kfmt.PrefixWriter{
		Sink:   kfmt.Console,
		Prefix: []byte("[" + module + "] "),
	})
}

// NewWithWriter returns a logger at the given level that writes to w.
func NewWithWriter(level string, w io.Writer) *log.Logger {
	return &log.Logger{
		Level:      log.ParseLevel(level),
		Caller:     0,
		TimeFormat: "15:04:05.000",
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
			Writer:         w,
		},
	}
}

// Addr formats a 32-bit address as 0x followed by 8 hex digits.
func Addr(addr uintptr) string {
	return fmt.Sprintf("0x%08x", addr)
}
