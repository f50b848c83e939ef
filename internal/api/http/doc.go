// Package http provides the kernel daemon's REST surface.
//
// The endpoints stand in for the syscall boundary and the bit of process
// machinery userspace would normally drive directly: spawning and restarting
// processes, binding allow buffers, subscribing upcalls, issuing IPC driver
// commands, stepping the scheduler, and inspecting pending upcalls and MPU
// regions.
//
// Responses use a uniform {"success": bool, ...} envelope. Syscall results
// are reported inside a successful envelope even when the command itself
// failed; the HTTP layer only fails for malformed requests and dead slots.
package http
