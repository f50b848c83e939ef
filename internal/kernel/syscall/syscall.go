// Package syscall defines the return value convention for driver command
// calls.
package syscall

import (
	"fmt"

	"github.com/jettr/tock/internal/kernel/errcode"
)

// CommandReturn is the result of a driver command call: either a success
// (optionally carrying one 32-bit value) or a failure carrying an error code.
type CommandReturn struct {
	failed bool
	code   errcode.Code
	value  uint32
}

// Success returns a success result with no value.
func Success() CommandReturn {
	return CommandReturn{}
}

// SuccessU32 returns a success result carrying one 32-bit value.
func SuccessU32(v uint32) CommandReturn {
	return CommandReturn{value: v}
}

// Failure returns a failure result carrying code.
func Failure(code errcode.Code) CommandReturn {
	return CommandReturn{failed: true, code: code}
}

// Succeeded reports whether the command succeeded.
func (r CommandReturn) Succeeded() bool {
	return !r.failed
}

// Value returns the success value. It is zero for plain successes and for
// failures.
func (r CommandReturn) Value() uint32 {
	if r.failed {
		return 0
	}
	return r.value
}

// ErrorCode returns the failure code and whether the result is a failure.
func (r CommandReturn) ErrorCode() (errcode.Code, bool) {
	return r.code, r.failed
}

// String renders the result for logs.
func (r CommandReturn) String() string {
	if r.failed {
		return fmt.Sprintf("failure(%s)", r.code)
	}
	return fmt.Sprintf("success(%d)", r.value)
}
