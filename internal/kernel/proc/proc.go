package proc

import (
	"fmt"
	"sync"

	"github.com/jettr/tock/internal/kernel/errcode"
)

// UpcallType marks which kind of IPC upcall a queued task targets.
type UpcallType uint8

const (
	// UpcallService targets the service upcall the process registered at
	// slot 0.
	UpcallService UpcallType = iota
	// UpcallClient targets the per-client upcall keyed by the initiator's
	// slot index.
	UpcallClient
)

// String returns a short tag for logs.
func (t UpcallType) String() string {
	if t == UpcallService {
		return "service"
	}
	return "client"
}

// ProcessID is a generational process handle. The zero value is not a valid
// handle; only the table mints them.
type ProcessID struct {
	slot       int
	generation uint64
}

// Slot returns the raw slot index carried by the handle. Callers that need a
// liveness-checked index use Table.Index instead.
func (id ProcessID) Slot() int {
	return id.slot
}

// Generation returns the generation counter carried by the handle.
func (id ProcessID) Generation() uint64 {
	return id.generation
}

func (id ProcessID) String() string {
	return fmt.Sprintf("proc-%d.%d", id.slot, id.generation)
}

// Task is an ephemeral unit of deferred IPC work queued on a target process:
// who initiated the notification and which upcall kind it targets.
type Task struct {
	Initiator ProcessID
	Upcall    UpcallType
}

// upcallSlot computes the upcall slot a task will target when dispatched.
// Slot 0 is the service upcall; client upcalls start at 1, keyed by the
// initiator's slot index.
func (t Task) upcallSlot() int {
	if t.Upcall == UpcallService {
		return 0
	}
	return 1 + t.Initiator.Slot()
}

// SubscribeState tracks one upcall binding of a process.
type SubscribeState uint8

const (
	// Unsubscribed means the process never registered this upcall.
	Unsubscribed SubscribeState = iota
	// Subscribed means the upcall is registered and enabled.
	Subscribed
	// UpcallOff means the process explicitly disabled this upcall. A notify
	// that would target it is a deliberate no-op, not a failure.
	UpcallOff
)

// ScheduledUpcall is one pending upcall invocation: the slot it targets and
// the three userspace arguments.
type ScheduledUpcall struct {
	Slot int       `json:"slot"`
	Args [3]uint32 `json:"args"`
}

// Process is a live process record. All mutation goes through its methods;
// the table hands out *Process only while the process occupies its slot.
type Process struct {
	id    ProcessID
	name  string
	table *Table

	mu      sync.Mutex
	active  bool
	tasks   []Task
	subs    []SubscribeState
	pending []ScheduledUpcall
	memNext uint32
}

// ID returns the process's generational handle.
func (p *Process) ID() ProcessID {
	return p.id
}

// Name returns the process's static application name.
func (p *Process) Name() string {
	return p.name
}

// Active reports whether the process still occupies its slot.
func (p *Process) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// EnqueueTask queues a deferred IPC task for this process. It fails with
// errcode.Off when the upcall the task targets is not enabled, with
// errcode.NoMem when the task queue is full, and with errcode.NoDevice when
// the process is no longer active.
func (p *Process) EnqueueTask(t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return errcode.NoDevice
	}
	slot := t.upcallSlot()
	if slot < 0 || slot >= len(p.subs) {
		return errcode.Invalid
	}
	if p.subs[slot] != Subscribed {
		return errcode.Off
	}
	if len(p.tasks) >= p.table.cfg.TaskQueueDepth {
		return errcode.NoMem
	}
	p.tasks = append(p.tasks, t)
	return nil
}

// DequeueTask pops the oldest queued task, if any. Tasks for one process run
// in the order they were enqueued.
func (p *Process) DequeueTask() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tasks) == 0 {
		return Task{}, false
	}
	t := p.tasks[0]
	p.tasks = p.tasks[1:]
	return t, true
}

// PendingTasks returns the number of queued tasks.
func (p *Process) PendingTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Subscribe registers (or re-enables) the upcall at slot.
func (p *Process) Subscribe(slot int) error {
	return p.setSubscribe(slot, Subscribed)
}

// SetUpcallOff explicitly disables the upcall at slot. Notifies targeting it
// will be treated as successful no-ops.
func (p *Process) SetUpcallOff(slot int) error {
	return p.setSubscribe(slot, UpcallOff)
}

func (p *Process) setSubscribe(slot int, s SubscribeState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return errcode.NoDevice
	}
	if slot < 0 || slot >= len(p.subs) {
		return errcode.Invalid
	}
	p.subs[slot] = s
	return nil
}

// Subscription returns the state of the upcall binding at slot.
func (p *Process) Subscription(slot int) SubscribeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot < 0 || slot >= len(p.subs) {
		return Unsubscribed
	}
	return p.subs[slot]
}

// ScheduleUpcall queues an upcall invocation on the process's callback queue.
// Fails with errcode.Off when the slot is not enabled and errcode.NoMem when
// the callback queue is full.
func (p *Process) ScheduleUpcall(slot int, args [3]uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return errcode.NoDevice
	}
	if slot < 0 || slot >= len(p.subs) {
		return errcode.Invalid
	}
	if p.subs[slot] != Subscribed {
		return errcode.Off
	}
	if len(p.pending) >= p.table.cfg.UpcallQueueDepth {
		return errcode.NoMem
	}
	p.pending = append(p.pending, ScheduledUpcall{Slot: slot, Args: args})
	return nil
}

// DrainUpcalls removes and returns every pending upcall invocation, oldest
// first.
func (p *Process) DrainUpcalls() []ScheduledUpcall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	return out
}

// PendingUpcalls returns a copy of the callback queue without draining it.
func (p *Process) PendingUpcalls() []ScheduledUpcall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ScheduledUpcall, len(p.pending))
	copy(out, p.pending)
	return out
}

// AllocBuffer reserves n bytes of the process's memory and returns the base
// address of the reservation. Addresses are stable for the process's lifetime.
func (p *Process) AllocBuffer(n uint32) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return 0, errcode.NoDevice
	}
	if p.memNext+n > p.table.cfg.ProcMemBytes {
		return 0, errcode.NoMem
	}
	addr := p.memBase() + p.memNext
	p.memNext += n
	return addr, nil
}

// memBase lays process memories out at fixed strides so buffer addresses are
// distinguishable across processes.
func (p *Process) memBase() uint32 {
	return procMemOrigin + uint32(p.id.slot)*p.table.cfg.ProcMemBytes
}

// procMemOrigin is where the first process's memory begins. The value mimics
// the SRAM base common on Cortex-M parts; nothing depends on it beyond being
// nonzero and page-ish aligned.
const procMemOrigin = 0x2000_0000

// AddMPURegion grants this process read/write access to [base, base+length).
// Returns false when the region cannot be installed at minLength or the
// process is no longer active. Re-installing an identical region is a no-op
// that reports success.
func (p *Process) AddMPURegion(base, length, minLength uint32) bool {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	if !active {
		return false
	}
	return p.table.mpu.AddRegion(p.id.slot, base, length, minLength)
}

// terminate marks the process dead and drops its queues. Called by the table
// with the table lock held.
func (p *Process) terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.tasks = nil
	p.pending = nil
}
