package ipc

import (
	"errors"

	"go.uber.org/zap"

	"github.com/jettr/tock/internal/infrastructure/logging"
	"github.com/jettr/tock/internal/infrastructure/monitoring"
	"github.com/jettr/tock/internal/kernel/errcode"
	"github.com/jettr/tock/internal/kernel/grant"
	"github.com/jettr/tock/internal/kernel/proc"
	"github.com/jettr/tock/internal/kernel/syscall"
)

// DriverNum is the IPC driver's syscall number.
const DriverNum = 0x10000

// roAllowSearch is the read-only allow index carrying the discovery name.
const roAllowSearch = 0

// serviceUpcallNum is the upcall slot a process subscribes to register itself
// as a service. clientUpcallBase+i is the upcall slot a service uses to reach
// the client occupying process slot i.
const (
	serviceUpcallNum = 0
	clientUpcallBase = 1
)

// Command numbers accepted by the driver.
const (
	cmdExists        = 0
	cmdDiscover      = 1
	cmdServiceNotify = 2
	cmdClientNotify  = 3
)

// ipcData is the per-process IPC record. It carries no fields of its own: the
// subscribed upcalls and allow-bound buffers live in the grant facility's own
// bookkeeping. The record exists so entry allocates storage for that
// bookkeeping and so entry exclusivity has something to anchor to.
type ipcData struct{}

// IPC is the IPC syscall driver.
type IPC struct {
	table   *proc.Table
	data    *grant.Registry[ipcData]
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New creates the IPC driver on top of table. grantBudget caps how many
// per-process records may exist at once; zero means unbounded.
func New(table *proc.Table, grantBudget int, log *logging.Logger) *IPC {
	if log == nil {
		log = logging.NewNop()
	}
	return &IPC{
		table: table,
		data: grant.New[ipcData](table, grant.Config{
			ReadOnlyCount:  1,
			ReadWriteCount: table.Config().MaxProcs,
			Budget:         grantBudget,
		}),
		log: log,
	}
}

// WithMetrics attaches a metrics collector.
func (i *IPC) WithMetrics(m *monitoring.Metrics) *IPC {
	i.metrics = m
	return i
}

// Reclaim releases the per-process IPC record of a terminated process. Wire
// it to the process table's reclaim hook.
func (i *IPC) Reclaim(id proc.ProcessID) {
	i.data.Reclaim(id)
	if i.metrics != nil {
		i.metrics.GrantEntries.Set(float64(i.data.Len()))
	}
}

// AllocateGrant eagerly allocates the caller's IPC record.
func (i *IPC) AllocateGrant(id proc.ProcessID) error {
	return i.data.Allocate(id)
}

// GrantAllocated reports whether id currently holds an IPC record.
func (i *IPC) GrantAllocated(id proc.ProcessID) bool {
	return i.data.Allocated(id)
}

// Command dispatches a syscall command issued by caller. target is the slot
// index of the process to notify; it is ignored by the probe and discovery
// commands.
func (i *IPC) Command(command, target, _ uint32, caller proc.ProcessID) syscall.CommandReturn {
	switch command {
	case cmdExists:
		return syscall.Success()
	case cmdDiscover:
		return i.discover(caller)
	case cmdServiceNotify:
		return i.notify(caller, target, proc.UpcallService)
	case cmdClientNotify:
		return i.notify(caller, target, proc.UpcallClient)
	default:
		return syscall.Failure(errcode.NoSupport)
	}
}

// discover scans live processes for one whose static name equals the caller's
// search buffer, byte for byte. The first match in slot order wins.
func (i *IPC) discover(caller proc.ProcessID) syscall.CommandReturn {
	ret := syscall.Failure(errcode.NoMem)
	err := i.data.Enter(caller, func(_ *ipcData, kd grant.KernelData) error {
		search, err := kd.ReadOnlyBuffer(roAllowSearch)
		if err != nil {
			// No search buffer was ever allowed.
			ret = syscall.Failure(errcode.Invalid)
			return nil
		}
		name := string(search.Bytes())
		match := i.table.Until(func(p *proc.Process) bool {
			return p.Name() == name
		})
		if match == nil {
			ret = syscall.Failure(errcode.NoDevice)
			return nil
		}
		slot, ok := i.table.Index(match.ID())
		if !ok {
			ret = syscall.Failure(errcode.NoDevice)
			return nil
		}
		ret = syscall.SuccessU32(uint32(slot))
		return nil
	})
	if err != nil {
		// Record allocation failed or the caller's record is already
		// entered; both surface as out-of-memory to userspace.
		ret = syscall.Failure(errcode.NoMem)
	}
	i.recordDiscovery(ret)
	return ret
}

// notify resolves the target slot and enqueues a deferred IPC task carrying
// the caller's identity. A target that disabled the relevant upcall is a
// successful no-op: opting out is the target's choice and is indistinguishable
// from success to the notifier.
func (i *IPC) notify(caller proc.ProcessID, target uint32, typ proc.UpcallType) syscall.CommandReturn {
	p, ok := i.table.Resolve(int(target))
	if !ok {
		i.recordNotify(typ, "invalid_target")
		return syscall.Failure(errcode.Invalid)
	}
	err := p.EnqueueTask(proc.Task{Initiator: caller, Upcall: typ})
	switch {
	case err == nil:
		i.recordNotify(typ, "enqueued")
		return syscall.Success()
	case errors.Is(err, errcode.Off):
		i.recordNotify(typ, "suppressed")
		return syscall.Success()
	default:
		i.recordNotify(typ, "error")
		return syscall.Failure(errcode.FromError(err))
	}
}

// ScheduleUpcall runs when the scheduler pops a queued IPC task for
// scheduleOn. It computes the upcall slot from the task type, maps the
// initiator's shared buffer into the target's MPU when one is allow-bound at
// the target's slot index, and queues the upcall. Every stale handle on this
// path is a silent drop: the originating syscall returned long ago.
func (i *IPC) ScheduleUpcall(scheduleOn, calledFrom proc.ProcessID, typ proc.UpcallType) error {
	slot := serviceUpcallNum
	if typ == proc.UpcallClient {
		idx, ok := i.table.Index(calledFrom)
		if !ok {
			i.drop("initiator_gone", scheduleOn, calledFrom)
			return nil
		}
		slot = clientUpcallBase + idx
	}
	err := i.data.Enter(scheduleOn, func(_ *ipcData, target grant.KernelData) error {
		return i.data.Enter(calledFrom, func(_ *ipcData, initiator grant.KernelData) error {
			targetIdx, ok := i.table.Index(scheduleOn)
			if !ok {
				i.drop("target_gone", scheduleOn, calledFrom)
				return nil
			}
			fromIdx, ok := i.table.Index(calledFrom)
			if !ok {
				i.drop("initiator_gone", scheduleOn, calledFrom)
				return nil
			}
			args := [3]uint32{uint32(fromIdx), 0, 0}
			if buf, err := initiator.ReadWriteBuffer(targetIdx); err == nil {
				if tp, ok := i.table.Lookup(scheduleOn); ok {
					if tp.AddMPURegion(buf.Addr(), buf.Len(), buf.Len()) && i.metrics != nil {
						i.metrics.MPURegions.Inc()
					}
				}
				args[1] = buf.Len()
				args[2] = buf.Addr()
			}
			if err := target.ScheduleUpcall(slot, args); err != nil {
				// Unsubscribed slot or full callback queue. The
				// chance to report this passed at enqueue time.
				i.log.Debug("ipc upcall not scheduled",
					zap.Stringer("target", scheduleOn),
					zap.Int("slot", slot),
					zap.Error(err),
				)
				return nil
			}
			if i.metrics != nil {
				i.metrics.UpcallsScheduled.Inc()
			}
			return nil
		})
	})
	if err != nil && errors.Is(err, errcode.NoDevice) {
		// Target or initiator terminated between enqueue and dispatch.
		i.drop("process_gone", scheduleOn, calledFrom)
		return nil
	}
	return err
}

func (i *IPC) drop(reason string, scheduleOn, calledFrom proc.ProcessID) {
	i.log.Debug("ipc dispatch dropped",
		zap.String("reason", reason),
		zap.Stringer("target", scheduleOn),
		zap.Stringer("initiator", calledFrom),
	)
	if i.metrics != nil {
		i.metrics.RecordSilentDrop(reason)
	}
}

// AllowReadOnly binds data as the caller's read-only allow buffer at index.
// Index 0 carries the discovery search name.
func (i *IPC) AllowReadOnly(id proc.ProcessID, index int, data []byte) (grant.Buffer, error) {
	return i.allow(id, index, data, grant.KernelData.AllowReadOnly)
}

// AllowReadWrite binds data as the caller's read-write allow buffer at index.
// Binding at index s shares the buffer with the process occupying slot s for
// subsequent notifies.
func (i *IPC) AllowReadWrite(id proc.ProcessID, index int, data []byte) (grant.Buffer, error) {
	return i.allow(id, index, data, grant.KernelData.AllowReadWrite)
}

func (i *IPC) allow(id proc.ProcessID, index int, data []byte, bind func(grant.KernelData, int, []byte) (grant.Buffer, error)) (grant.Buffer, error) {
	var buf grant.Buffer
	err := i.data.Enter(id, func(_ *ipcData, kd grant.KernelData) error {
		b, err := bind(kd, index, data)
		if err != nil {
			return err
		}
		buf = b
		return nil
	})
	if err == nil && i.metrics != nil {
		i.metrics.GrantEntries.Set(float64(i.data.Len()))
	}
	return buf, err
}

func (i *IPC) recordDiscovery(ret syscall.CommandReturn) {
	if i.metrics == nil {
		return
	}
	result := "found"
	if code, failed := ret.ErrorCode(); failed {
		switch code {
		case errcode.NoDevice:
			result = "no_device"
		case errcode.Invalid:
			result = "invalid"
		default:
			result = "error"
		}
	}
	i.metrics.RecordDiscovery(result)
}

func (i *IPC) recordNotify(typ proc.UpcallType, outcome string) {
	if i.metrics != nil {
		i.metrics.RecordNotify(typ.String(), outcome)
	}
}
