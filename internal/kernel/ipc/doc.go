// Package ipc implements the inter-process communication syscall driver.
//
// Mutually-distrusting processes use it to find each other by name, share one
// buffer per notification, and deliver asynchronous upcalls. The kernel never
// copies a message body; a notify enqueues a deferred task on the target and
// the shared buffer, if any, is mapped into the target's MPU when that task
// is later dispatched.
//
// Command interface (driver number 0x10000):
//   - 0: presence probe, always succeeds
//   - 1: discover a service by exact name match against the read-only allow
//     buffer at index 0; returns the matched process's slot index
//   - 2: notify the service at the given slot index
//   - 3: notify the client at the given slot index
//
// Upcall convention: slot 0 is the service upcall a process registers to
// become discoverable; slot 1+i is the client upcall for the peer occupying
// process slot i. Every IPC upcall carries (initiator slot, buffer length,
// buffer address), with (slot, 0, 0) when no buffer is shared.
//
// Notification delivery is fire-and-forget. Once the notify command has
// returned, failures on the dispatch path - a terminated initiator or target,
// an unreadable buffer, an unsubscribed upcall - are resolved locally by
// dropping the work, since no caller is left to report to.
package ipc
