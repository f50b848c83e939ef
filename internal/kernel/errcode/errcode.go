// Package errcode defines the syscall error taxonomy shared by all kernel
// drivers.
//
// Codes mirror the numbering userspace sees in failure syscall returns, so a
// Code can travel unchanged from a driver to the syscall boundary. Code also
// implements error, which lets kernel-internal paths propagate a code with
// errors.Is and map it back at the edge.
package errcode

import "errors"

// Code is a syscall error code.
type Code uint32

const (
	// Fail is a generic failure condition.
	Fail Code = iota + 1
	// Busy indicates the underlying system is busy; retry.
	Busy
	// Already indicates the state requested is already set.
	Already
	// Off indicates the component is powered down or the target upcall
	// binding is disabled.
	Off
	// Reserve indicates a reservation is required before use.
	Reserve
	// Invalid indicates an invalid argument, including a target process
	// identifier that does not resolve to a live process.
	Invalid
	// Size indicates the provided size was wrong.
	Size
	// Cancel indicates the operation was cancelled.
	Cancel
	// NoMem indicates the memory required was not available.
	NoMem
	// NoSupport indicates the operation or command is not supported.
	NoSupport
	// NoDevice indicates the device does not exist; discovery uses this
	// when no live process carries the requested name.
	NoDevice
	// Uninstalled indicates the state for this component was not installed.
	Uninstalled
	// NoAck indicates the packet transmission was sent but not acknowledged.
	NoAck
)

var names = map[Code]string{
	Fail:        "FAIL",
	Busy:        "BUSY",
	Already:     "ALREADY",
	Off:         "OFF",
	Reserve:     "RESERVE",
	Invalid:     "INVALID",
	Size:        "SIZE",
	Cancel:      "CANCEL",
	NoMem:       "NOMEM",
	NoSupport:   "NOSUPPORT",
	NoDevice:    "NODEVICE",
	Uninstalled: "UNINSTALLED",
	NoAck:       "NOACK",
}

// String returns the canonical upper-case name of the code.
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// Error implements error so codes can flow through error returns and be
// matched with errors.Is.
func (c Code) Error() string {
	return c.String()
}

// FromError extracts the Code carried by err, or Fail if err carries none.
func FromError(err error) Code {
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Fail
}
