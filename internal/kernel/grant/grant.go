// Package grant implements per-process, driver-private storage with scoped
// exclusive access.
//
// A Registry lazily allocates one record per process on first entry and hands
// it out only inside Enter, together with a KernelData handle for the entered
// process's allow buffers and upcall queue. Entry is exclusive and
// non-reentrant per process: entering a process whose record is already
// entered fails fast with ErrAlreadyBorrowed instead of blocking, since the
// kernel has nothing to block on. Entering a different process from inside an
// entry is a plain nested call; the IPC dispatch path relies on that to read
// the initiator's shared buffer while holding the target's upcall handle.
//
// Records are keyed by generational identity, so a restarted process starts
// from a fresh record. The process table's reclaim hook releases storage when
// a slot is vacated.
package grant

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jettr/tock/internal/kernel/errcode"
	"github.com/jettr/tock/internal/kernel/proc"
)

// ErrAlreadyBorrowed reports a re-entrant Enter for the same process.
var ErrAlreadyBorrowed = errors.New("grant: process record already entered")

// Config sizes the per-process allow-buffer tables and bounds allocation.
type Config struct {
	// ReadOnlyCount is the number of read-only allow slots per process.
	ReadOnlyCount int
	// ReadWriteCount is the number of read-write allow slots per process.
	ReadWriteCount int
	// Budget caps how many process records may be allocated at once.
	// Zero means no cap beyond the process table itself.
	Budget int
}

// Buffer is one allow-bound memory range: an address in the owning process's
// memory plus the bytes behind it. The zero Buffer is not valid; unset allow
// slots are reported as errors, not zero buffers.
type Buffer struct {
	addr uint32
	data []byte
}

// Addr returns the buffer's base address in the owner's memory.
func (b Buffer) Addr() uint32 { return b.addr }

// Len returns the buffer's length in bytes.
func (b Buffer) Len() uint32 { return uint32(len(b.data)) }

// Bytes returns the buffer's backing bytes. Callers must not retain the slice
// past the enclosing Enter.
func (b Buffer) Bytes() []byte { return b.data }

type entry[T any] struct {
	borrowed atomic.Bool
	data     *T
	ro       []*Buffer
	rw       []*Buffer
}

type key struct {
	slot       int
	generation uint64
}

// Registry holds the per-process records of one driver.
type Registry[T any] struct {
	cfg   Config
	table *proc.Table

	mu      sync.Mutex
	entries map[key]*entry[T]
}

// New creates an empty registry backed by table.
func New[T any](table *proc.Table, cfg Config) *Registry[T] {
	return &Registry[T]{
		cfg:     cfg,
		table:   table,
		entries: make(map[key]*entry[T]),
	}
}

// Enter runs fn with exclusive access to id's record, allocating the record
// on first entry. It fails with errcode.NoDevice when id no longer resolves
// to a live process, errcode.NoMem when the allocation budget is exhausted,
// and ErrAlreadyBorrowed when id's record is already entered somewhere up the
// call chain. The record and handle passed to fn are only valid until fn
// returns.
func (r *Registry[T]) Enter(id proc.ProcessID, fn func(data *T, kd KernelData) error) error {
	p, ok := r.table.Lookup(id)
	if !ok {
		return fmt.Errorf("grant enter %s: %w", id, errcode.NoDevice)
	}
	e, err := r.entryFor(id)
	if err != nil {
		return err
	}
	if !e.borrowed.CompareAndSwap(false, true) {
		return fmt.Errorf("grant enter %s: %w", id, ErrAlreadyBorrowed)
	}
	defer e.borrowed.Store(false)
	return fn(e.data, KernelData{entry: e, proc: p})
}

// Allocate ensures id's record exists without entering it.
func (r *Registry[T]) Allocate(id proc.ProcessID) error {
	return r.Enter(id, func(*T, KernelData) error { return nil })
}

// Allocated reports whether id currently has a record.
func (r *Registry[T]) Allocated(id proc.ProcessID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key{slot: id.Slot(), generation: id.Generation()}]
	return ok
}

// Reclaim releases the record belonging to id. Wired to the process table's
// reclaim hook so storage goes away with the process.
func (r *Registry[T]) Reclaim(id proc.ProcessID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key{slot: id.Slot(), generation: id.Generation()})
}

// Len returns the number of allocated records.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry[T]) entryFor(id proc.ProcessID) (*entry[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{slot: id.Slot(), generation: id.Generation()}
	if e, ok := r.entries[k]; ok {
		return e, nil
	}
	if r.cfg.Budget > 0 && len(r.entries) >= r.cfg.Budget {
		return nil, fmt.Errorf("grant allocate %s: budget exhausted: %w", id, errcode.NoMem)
	}
	e := &entry[T]{
		data: new(T),
		ro:   make([]*Buffer, r.cfg.ReadOnlyCount),
		rw:   make([]*Buffer, r.cfg.ReadWriteCount),
	}
	r.entries[k] = e
	return e, nil
}

// KernelData is the kernel-facing handle to the entered process: its allow
// buffers and its upcall queue. Valid only inside the Enter that produced it.
type KernelData struct {
	entry interface {
		readOnly(i int) (Buffer, error)
		readWrite(i int) (Buffer, error)
		setReadOnly(i int, b *Buffer) error
		setReadWrite(i int, b *Buffer) error
	}
	proc *proc.Process
}

func (e *entry[T]) readOnly(i int) (Buffer, error) {
	if i < 0 || i >= len(e.ro) || e.ro[i] == nil {
		return Buffer{}, errcode.Invalid
	}
	return *e.ro[i], nil
}

func (e *entry[T]) readWrite(i int) (Buffer, error) {
	if i < 0 || i >= len(e.rw) || e.rw[i] == nil {
		return Buffer{}, errcode.Invalid
	}
	return *e.rw[i], nil
}

func (e *entry[T]) setReadOnly(i int, b *Buffer) error {
	if i < 0 || i >= len(e.ro) {
		return errcode.Invalid
	}
	e.ro[i] = b
	return nil
}

func (e *entry[T]) setReadWrite(i int, b *Buffer) error {
	if i < 0 || i >= len(e.rw) {
		return errcode.Invalid
	}
	e.rw[i] = b
	return nil
}

// ReadOnlyBuffer returns the read-only allow buffer at index i, or
// errcode.Invalid when no buffer is bound there.
func (kd KernelData) ReadOnlyBuffer(i int) (Buffer, error) {
	return kd.entry.readOnly(i)
}

// ReadWriteBuffer returns the read-write allow buffer at index i, or
// errcode.Invalid when no buffer is bound there.
func (kd KernelData) ReadWriteBuffer(i int) (Buffer, error) {
	return kd.entry.readWrite(i)
}

// AllowReadOnly binds data as the read-only buffer at index i, reserving
// process memory for it. An empty data revokes the binding.
func (kd KernelData) AllowReadOnly(i int, data []byte) (Buffer, error) {
	return kd.allow(i, data, kd.entry.setReadOnly)
}

// AllowReadWrite binds data as the read-write buffer at index i, reserving
// process memory for it. An empty data revokes the binding.
func (kd KernelData) AllowReadWrite(i int, data []byte) (Buffer, error) {
	return kd.allow(i, data, kd.entry.setReadWrite)
}

func (kd KernelData) allow(i int, data []byte, set func(int, *Buffer) error) (Buffer, error) {
	if len(data) == 0 {
		if err := set(i, nil); err != nil {
			return Buffer{}, err
		}
		return Buffer{}, nil
	}
	addr, err := kd.proc.AllocBuffer(uint32(len(data)))
	if err != nil {
		return Buffer{}, err
	}
	b := Buffer{addr: addr, data: data}
	if err := set(i, &b); err != nil {
		return Buffer{}, err
	}
	return b, nil
}

// ScheduleUpcall queues an upcall on the entered process.
func (kd KernelData) ScheduleUpcall(slot int, args [3]uint32) error {
	return kd.proc.ScheduleUpcall(slot, args)
}

// Process returns the entered process's handle.
func (kd KernelData) Process() proc.ProcessID {
	return kd.proc.ID()
}
