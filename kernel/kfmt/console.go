// Package kfmt routes kernel console output. The console itself is an
// external collaborator that only exposes a put-character callback; kfmt
// adapts that callback to an io.Writer and buffers everything written
// before the callback is registered.
package kfmt

import "io"

var (
	// earlyPrintBuffer is a ring buffer that stores console output before
	// an output sink is registered.
	earlyPrintBuffer ringBuffer

	// outputSink is an io.Writer where console output is sent. If set to
	// nil, then the output is redirected to the earlyPrintBuffer.
	outputSink io.Writer

	// Console is the io.Writer that kernel code (and the logger built by
	// package klog) writes to.
	Console io.Writer = consoleWriter{}
)

type consoleWriter struct{}

// Write implements io.Writer.
func (consoleWriter) Write(p []byte) (int, error) {
	if outputSink == nil {
		return earlyPrintBuffer.Write(p)
	}
	return outputSink.Write(p)
}

// SetOutputSink sets the default target for console output to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyPrintBuffer)
	}
}

// PutcFn is the put-character callback exposed by a character console.
type PutcFn func(ch byte)

// PutcWriter adapts a put-character callback to an io.Writer.
type PutcWriter struct {
	Putc PutcFn
}

// Write emits p one character at a time.
func (w PutcWriter) Write(p []byte) (int, error) {
	for _, ch := range p {
		w.Putc(ch)
	}
	return len(p), nil
}
