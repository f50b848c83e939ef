// Package sched runs the deferred side of the kernel: it pops the tasks
// queued on each process and hands them to their dispatcher.
//
// Execution is cooperative, not parallel. A syscall enqueues work and
// returns; the scheduler later runs that work to completion in queue order
// when the owning process gets its turn. Dispatch failures never propagate to
// the process that enqueued the work.
package sched

import (
	"go.uber.org/zap"

	"github.com/jettr/tock/internal/infrastructure/logging"
	"github.com/jettr/tock/internal/kernel/proc"
)

// Dispatcher consumes popped IPC tasks. Implemented by the IPC driver.
type Dispatcher interface {
	ScheduleUpcall(scheduleOn, calledFrom proc.ProcessID, typ proc.UpcallType) error
}

// Scheduler drains per-process task queues.
type Scheduler struct {
	table *proc.Table
	ipc   Dispatcher
	log   *logging.Logger
}

// New creates a scheduler over table that feeds IPC tasks to ipc.
func New(table *proc.Table, ipc Dispatcher, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Scheduler{table: table, ipc: ipc, log: log}
}

// RunPending runs every task currently queued for id, oldest first, and
// returns how many ran. A stale handle runs nothing.
func (s *Scheduler) RunPending(id proc.ProcessID) int {
	p, ok := s.table.Lookup(id)
	if !ok {
		return 0
	}
	return s.drain(p)
}

// RunAll drains every live process's task queue in slot order and returns the
// total number of tasks run.
func (s *Scheduler) RunAll() int {
	total := 0
	s.table.Each(func(p *proc.Process) {
		total += s.drain(p)
	})
	return total
}

func (s *Scheduler) drain(p *proc.Process) int {
	n := 0
	for {
		task, ok := p.DequeueTask()
		if !ok {
			return n
		}
		n++
		if err := s.ipc.ScheduleUpcall(p.ID(), task.Initiator, task.Upcall); err != nil {
			// Nothing to report to: the originating syscall already
			// returned. Log and keep draining.
			s.log.Warn("ipc task dispatch failed",
				zap.Stringer("process", p.ID()),
				zap.Stringer("initiator", task.Initiator),
				zap.String("type", task.Upcall.String()),
				zap.Error(err),
			)
		}
	}
}
