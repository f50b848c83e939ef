// Package ws streams kernel activity over a WebSocket connection.
//
// Clients send JSON commands and receive JSON events on the same connection:
//   - {"type": "ping"} answers with a pong
//   - {"type": "run"} or {"type": "run", "slot": n} steps the scheduler
//   - {"type": "drain", "slot": n} pops a process's delivered upcalls
//
// The stream exists for observability and demos; the REST surface covers the
// same operations request/response style.
package ws
