// Package proc implements the kernel's process table.
//
// Processes are identified by generational handles: a small slot index plus a
// generation counter. A handle resolves only while its generation matches the
// slot's current occupant, so identifiers referring to a terminated process go
// stale instead of silently aliasing the slot's next tenant.
//
// Components:
//   - ProcessID: generational process handle, slot index is the wire-level id
//   - Process: live process record with task queue and upcall bindings
//   - Table: fixed-capacity slot table with stop-early scan in slot order
//
// The table is the read-only iteration capability the IPC driver is built on;
// tests substitute it with a table of their own construction.
package proc
