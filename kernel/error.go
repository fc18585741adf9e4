package kernel

// Error describes a kernel error. All kernel errors must be defined as global
// variables that are pointers to the Error structure. Failure paths in the
// memory bring-up code run before any allocator is available so they cannot
// use errors.New.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error message prefixed by the module that raised it.
func (e *Error) String() string {
	if e.Module == "" {
		return e.Message
	}
	return "[" + e.Module + "] " + e.Message
}
