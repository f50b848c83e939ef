package proc

import (
	"fmt"
	"sync"

	"github.com/jettr/tock/internal/kernel/errcode"
	"github.com/jettr/tock/internal/kernel/mpu"
)

// Config bounds the process table and the per-process queues.
type Config struct {
	// MaxProcs is the fixed number of process slots. The upcall table of
	// every process has MaxProcs+1 entries: one service slot plus one
	// client slot per potential peer.
	MaxProcs int
	// TaskQueueDepth bounds each process's deferred-task queue.
	TaskQueueDepth int
	// UpcallQueueDepth bounds each process's pending-callback queue.
	UpcallQueueDepth int
	// ProcMemBytes is the size of each process's memory for allow buffers.
	ProcMemBytes uint32
}

// DefaultConfig returns the limits used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		MaxProcs:         8,
		TaskQueueDepth:   10,
		UpcallQueueDepth: 10,
		ProcMemBytes:     0x1_0000,
	}
}

// Table is the fixed-capacity process table. Slots are reused across process
// lifetimes; the generation counter per slot keeps old handles from resolving
// to a new occupant.
type Table struct {
	cfg Config
	mpu mpu.Manager

	mu      sync.RWMutex
	procs   []*Process
	gens    []uint64
	reclaim func(ProcessID)
}

// NewTable creates a process table with the given limits and MPU backend.
func NewTable(cfg Config, m mpu.Manager) *Table {
	if cfg.MaxProcs <= 0 {
		cfg = DefaultConfig()
	}
	return &Table{
		cfg:   cfg,
		mpu:   m,
		procs: make([]*Process, cfg.MaxProcs),
		gens:  make([]uint64, cfg.MaxProcs),
	}
}

// Config returns the table's limits.
func (t *Table) Config() Config {
	return t.cfg
}

// UpcallCount is the size of each process's upcall table: the service slot
// plus one client slot per process slot.
func (t *Table) UpcallCount() int {
	return t.cfg.MaxProcs + 1
}

// OnReclaim registers a hook invoked with the handle of every terminated
// process, after its slot has been vacated. Used to reclaim grant storage.
func (t *Table) OnReclaim(fn func(ProcessID)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reclaim = fn
}

// Spawn places a new process in the lowest free slot. Fails with
// errcode.NoMem when every slot is occupied.
func (t *Table) Spawn(name string) (*Process, error) {
	if name == "" {
		return nil, fmt.Errorf("spawn: empty process name: %w", errcode.Invalid)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for slot := range t.procs {
		if t.procs[slot] != nil {
			continue
		}
		t.gens[slot]++
		p := &Process{
			id:     ProcessID{slot: slot, generation: t.gens[slot]},
			name:   name,
			table:  t,
			active: true,
			subs:   make([]SubscribeState, t.cfg.MaxProcs+1),
		}
		t.procs[slot] = p
		return p, nil
	}
	return nil, fmt.Errorf("spawn %q: process table full: %w", name, errcode.NoMem)
}

// Terminate vacates the process's slot. Reports false when the handle is
// already stale. Queued tasks and pending upcalls are discarded; the slot's
// MPU regions are cleared; the reclaim hook runs last.
func (t *Table) Terminate(id ProcessID) bool {
	t.mu.Lock()
	if id.slot < 0 || id.slot >= len(t.procs) {
		t.mu.Unlock()
		return false
	}
	p := t.procs[id.slot]
	if p == nil || p.id != id {
		t.mu.Unlock()
		return false
	}
	t.procs[id.slot] = nil
	hook := t.reclaim
	t.mu.Unlock()

	p.terminate()
	t.mpu.ClearRegions(id.slot)
	if hook != nil {
		hook(id)
	}
	return true
}

// Restart terminates the process and spawns a fresh instance with the same
// name in the same slot, under a new generation.
func (t *Table) Restart(id ProcessID) (*Process, error) {
	t.mu.Lock()
	if id.slot < 0 || id.slot >= len(t.procs) {
		t.mu.Unlock()
		return nil, fmt.Errorf("restart %s: %w", id, errcode.NoDevice)
	}
	old := t.procs[id.slot]
	if old == nil || old.id != id {
		t.mu.Unlock()
		return nil, fmt.Errorf("restart %s: %w", id, errcode.NoDevice)
	}
	name := old.name
	t.procs[id.slot] = nil
	hook := t.reclaim
	t.gens[id.slot]++
	p := &Process{
		id:     ProcessID{slot: id.slot, generation: t.gens[id.slot]},
		name:   name,
		table:  t,
		active: true,
		subs:   make([]SubscribeState, t.cfg.MaxProcs+1),
	}
	t.procs[id.slot] = p
	t.mu.Unlock()

	old.terminate()
	t.mpu.ClearRegions(id.slot)
	if hook != nil {
		hook(id)
	}
	return p, nil
}

// Lookup resolves a handle to its live process. A handle whose generation no
// longer matches the slot's occupant resolves to nothing.
func (t *Table) Lookup(id ProcessID) (*Process, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	slot := id.slot
	if slot < 0 || slot >= len(t.procs) {
		return nil, false
	}
	p := t.procs[slot]
	if p == nil || p.id != id {
		return nil, false
	}
	return p, true
}

// Resolve returns the live process occupying slot, if any.
func (t *Table) Resolve(slot int) (*Process, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if slot < 0 || slot >= len(t.procs) {
		return nil, false
	}
	p := t.procs[slot]
	if p == nil {
		return nil, false
	}
	return p, true
}

// Index returns the slot index of id, valid only while id still resolves to
// the slot's current occupant.
func (t *Table) Index(id ProcessID) (int, bool) {
	if _, ok := t.Lookup(id); !ok {
		return 0, false
	}
	return id.slot, true
}

// Until scans live processes in ascending slot order and returns the first
// one fn reports true for, or nil. Slot order is the documented tie-break for
// duplicate names.
func (t *Table) Until(fn func(*Process) bool) *Process {
	for _, p := range t.live() {
		if fn(p) {
			return p
		}
	}
	return nil
}

// Each calls fn for every live process in ascending slot order.
func (t *Table) Each(fn func(*Process)) {
	for _, p := range t.live() {
		fn(p)
	}
}

// Len returns the number of live processes.
func (t *Table) Len() int {
	return len(t.live())
}

// live snapshots the occupied slots so iteration does not hold the table
// lock across callbacks.
func (t *Table) live() []*Process {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Process, 0, len(t.procs))
	for _, p := range t.procs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
