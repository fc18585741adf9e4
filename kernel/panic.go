package kernel

import (
	"fmt"

	"gopher386/kernel/cpu"
	"gopher386/kernel/kfmt"

	"github.com/pkg/errors"
)

var (
	// cpuHaltFn is mocked by tests.
	cpuHaltFn = cpu.Halt
)

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. If e wraps a *Error, the module of the wrapped error is reported
// together with the full message.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		err = &Error{Module: "rt", Message: t}
	case error:
		err = &Error{Module: "rt", Message: t.Error()}
		if cause, ok := errors.Cause(t).(*Error); ok {
			err.Module = cause.Module
		}
	}

	fmt.Fprintf(kfmt.Console, "\n-----------------------------------\n")
	if err != nil {
		fmt.Fprintf(kfmt.Console, "[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	fmt.Fprintf(kfmt.Console, "*** kernel panic: system halted ***")
	fmt.Fprintf(kfmt.Console, "\n-----------------------------------\n")

	cpuHaltFn()
}
