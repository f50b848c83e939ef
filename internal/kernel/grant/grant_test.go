package grant

import (
	"errors"
	"testing"

	"github.com/jettr/tock/internal/kernel/errcode"
	"github.com/jettr/tock/internal/kernel/mpu"
	"github.com/jettr/tock/internal/kernel/proc"
)

type record struct {
	touched int
}

func newFixture(t *testing.T, budget int) (*proc.Table, *Registry[record]) {
	t.Helper()
	table := proc.NewTable(proc.Config{
		MaxProcs:         4,
		TaskQueueDepth:   4,
		UpcallQueueDepth: 4,
		ProcMemBytes:     0x1000,
	}, mpu.NewTrackingManager())
	reg := New[record](table, Config{
		ReadOnlyCount:  1,
		ReadWriteCount: 4,
		Budget:         budget,
	})
	return table, reg
}

func TestEnterAllocatesLazily(t *testing.T) {
	table, reg := newFixture(t, 0)
	p, _ := table.Spawn("app")

	if reg.Allocated(p.ID()) {
		t.Error("Record allocated before first entry")
	}
	err := reg.Enter(p.ID(), func(r *record, _ KernelData) error {
		r.touched++
		return nil
	})
	if err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	if !reg.Allocated(p.ID()) {
		t.Error("Record not allocated after entry")
	}

	// Same record on re-entry
	reg.Enter(p.ID(), func(r *record, _ KernelData) error {
		if r.touched != 1 {
			t.Errorf("Expected persisted record, touched = %d", r.touched)
		}
		return nil
	})
}

func TestEnterDeadProcessFails(t *testing.T) {
	table, reg := newFixture(t, 0)
	p, _ := table.Spawn("app")
	id := p.ID()
	table.Terminate(id)

	err := reg.Enter(id, func(*record, KernelData) error { return nil })
	if !errors.Is(err, errcode.NoDevice) {
		t.Errorf("Expected NoDevice, got %v", err)
	}
}

func TestReentrantEnterFailsFast(t *testing.T) {
	table, reg := newFixture(t, 0)
	p, _ := table.Spawn("app")

	var inner error
	err := reg.Enter(p.ID(), func(*record, KernelData) error {
		inner = reg.Enter(p.ID(), func(*record, KernelData) error {
			t.Error("Re-entrant callback ran")
			return nil
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Outer enter failed: %v", err)
	}
	if !errors.Is(inner, ErrAlreadyBorrowed) {
		t.Errorf("Expected ErrAlreadyBorrowed, got %v", inner)
	}
}

func TestNestedEnterDifferentProcesses(t *testing.T) {
	table, reg := newFixture(t, 0)
	a, _ := table.Spawn("a")
	b, _ := table.Spawn("b")

	err := reg.Enter(a.ID(), func(*record, KernelData) error {
		return reg.Enter(b.ID(), func(*record, KernelData) error {
			return nil
		})
	})
	if err != nil {
		t.Errorf("Nested enter of a different process failed: %v", err)
	}
}

func TestBorrowReleasedAfterCallbackError(t *testing.T) {
	table, reg := newFixture(t, 0)
	p, _ := table.Spawn("app")

	wantErr := errors.New("callback failed")
	if err := reg.Enter(p.ID(), func(*record, KernelData) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Expected callback error, got %v", err)
	}
	// The borrow must be released on the error path too.
	if err := reg.Enter(p.ID(), func(*record, KernelData) error { return nil }); err != nil {
		t.Errorf("Enter after failed callback: %v", err)
	}
}

func TestBudgetExhaustion(t *testing.T) {
	table, reg := newFixture(t, 1)
	a, _ := table.Spawn("a")
	b, _ := table.Spawn("b")

	if err := reg.Allocate(a.ID()); err != nil {
		t.Fatalf("First allocation failed: %v", err)
	}
	err := reg.Allocate(b.ID())
	if !errors.Is(err, errcode.NoMem) {
		t.Errorf("Expected NoMem, got %v", err)
	}
}

func TestReclaimFreesBudgetAndState(t *testing.T) {
	table, reg := newFixture(t, 1)
	table.OnReclaim(reg.Reclaim)
	a, _ := table.Spawn("a")
	reg.Allocate(a.ID())

	table.Terminate(a.ID())
	if reg.Len() != 0 {
		t.Errorf("Expected 0 records after reclaim, got %d", reg.Len())
	}

	b, _ := table.Spawn("b")
	if err := reg.Allocate(b.ID()); err != nil {
		t.Errorf("Allocation after reclaim failed: %v", err)
	}
}

func TestRestartGetsFreshRecord(t *testing.T) {
	table, reg := newFixture(t, 0)
	table.OnReclaim(reg.Reclaim)
	p, _ := table.Spawn("app")

	reg.Enter(p.ID(), func(r *record, _ KernelData) error {
		r.touched = 7
		return nil
	})
	fresh, err := table.Restart(p.ID())
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	reg.Enter(fresh.ID(), func(r *record, _ KernelData) error {
		if r.touched != 0 {
			t.Errorf("Restarted process inherited state: touched = %d", r.touched)
		}
		return nil
	})
}

func TestAllowBuffers(t *testing.T) {
	table, reg := newFixture(t, 0)
	p, _ := table.Spawn("app")

	err := reg.Enter(p.ID(), func(_ *record, kd KernelData) error {
		if _, err := kd.ReadOnlyBuffer(0); !errors.Is(err, errcode.Invalid) {
			t.Errorf("Expected Invalid for unset buffer, got %v", err)
		}

		bound, err := kd.AllowReadOnly(0, []byte("alpha"))
		if err != nil {
			t.Fatalf("AllowReadOnly failed: %v", err)
		}
		if bound.Len() != 5 {
			t.Errorf("Expected len 5, got %d", bound.Len())
		}

		got, err := kd.ReadOnlyBuffer(0)
		if err != nil {
			t.Fatalf("ReadOnlyBuffer failed: %v", err)
		}
		if string(got.Bytes()) != "alpha" || got.Addr() != bound.Addr() {
			t.Errorf("Buffer = %q@%#x, want %q@%#x", got.Bytes(), got.Addr(), "alpha", bound.Addr())
		}

		// Empty allow revokes
		if _, err := kd.AllowReadOnly(0, nil); err != nil {
			t.Fatalf("Revoke failed: %v", err)
		}
		if _, err := kd.ReadOnlyBuffer(0); !errors.Is(err, errcode.Invalid) {
			t.Errorf("Expected Invalid after revoke, got %v", err)
		}

		// Out of range indexes
		if _, err := kd.AllowReadOnly(1, []byte("x")); !errors.Is(err, errcode.Invalid) {
			t.Errorf("Expected Invalid for out-of-range index, got %v", err)
		}
		if _, err := kd.ReadWriteBuffer(4); !errors.Is(err, errcode.Invalid) {
			t.Errorf("Expected Invalid for out-of-range rw index, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
}

func TestLastWriterWinsOnRebind(t *testing.T) {
	table, reg := newFixture(t, 0)
	p, _ := table.Spawn("app")

	reg.Enter(p.ID(), func(_ *record, kd KernelData) error {
		kd.AllowReadWrite(1, []byte("old payload"))
		kd.AllowReadWrite(1, []byte("new"))
		got, err := kd.ReadWriteBuffer(1)
		if err != nil {
			t.Fatalf("ReadWriteBuffer failed: %v", err)
		}
		if string(got.Bytes()) != "new" {
			t.Errorf("Expected rebind to win, got %q", got.Bytes())
		}
		return nil
	})
}
