package proc

import (
	"errors"
	"testing"

	"github.com/jettr/tock/internal/kernel/errcode"
	"github.com/jettr/tock/internal/kernel/mpu"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	cfg := Config{
		MaxProcs:         4,
		TaskQueueDepth:   2,
		UpcallQueueDepth: 2,
		ProcMemBytes:     0x1000,
	}
	return NewTable(cfg, mpu.NewTrackingManager())
}

func TestSpawnAssignsLowestFreeSlot(t *testing.T) {
	table := newTestTable(t)

	a, err := table.Spawn("alpha")
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	b, _ := table.Spawn("beta")

	if a.ID().Slot() != 0 || b.ID().Slot() != 1 {
		t.Errorf("Expected slots 0 and 1, got %d and %d", a.ID().Slot(), b.ID().Slot())
	}

	table.Terminate(a.ID())
	c, _ := table.Spawn("gamma")
	if c.ID().Slot() != 0 {
		t.Errorf("Expected reused slot 0, got %d", c.ID().Slot())
	}
}

func TestSpawnFailsWhenFull(t *testing.T) {
	table := newTestTable(t)
	for i := 0; i < 4; i++ {
		if _, err := table.Spawn("app"); err != nil {
			t.Fatalf("Spawn %d failed: %v", i, err)
		}
	}
	_, err := table.Spawn("overflow")
	if !errors.Is(err, errcode.NoMem) {
		t.Errorf("Expected NoMem, got %v", err)
	}
}

func TestStaleHandleDoesNotResolveNewOccupant(t *testing.T) {
	table := newTestTable(t)
	old, _ := table.Spawn("first")
	oldID := old.ID()

	table.Terminate(oldID)
	fresh, _ := table.Spawn("second")

	if fresh.ID().Slot() != oldID.Slot() {
		t.Fatalf("Expected slot reuse, got %d", fresh.ID().Slot())
	}
	if _, ok := table.Lookup(oldID); ok {
		t.Error("Stale handle resolved to the slot's new occupant")
	}
	if _, ok := table.Index(oldID); ok {
		t.Error("Stale handle still reports a valid index")
	}
	if _, ok := table.Lookup(fresh.ID()); !ok {
		t.Error("Fresh handle did not resolve")
	}
}

func TestRestartKeepsSlotBumpsGeneration(t *testing.T) {
	table := newTestTable(t)
	p, _ := table.Spawn("svc")
	id := p.ID()

	fresh, err := table.Restart(id)
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if fresh.ID().Slot() != id.Slot() {
		t.Errorf("Restart moved slots: %d -> %d", id.Slot(), fresh.ID().Slot())
	}
	if fresh.ID().Generation() <= id.Generation() {
		t.Errorf("Restart did not bump generation: %d -> %d", id.Generation(), fresh.ID().Generation())
	}
	if fresh.Name() != "svc" {
		t.Errorf("Restart lost the name, got %q", fresh.Name())
	}
	if _, ok := table.Lookup(id); ok {
		t.Error("Old handle still resolves after restart")
	}
}

func TestUntilScansInSlotOrder(t *testing.T) {
	table := newTestTable(t)
	table.Spawn("dup")
	table.Spawn("other")
	table.Spawn("dup")

	match := table.Until(func(p *Process) bool { return p.Name() == "dup" })
	if match == nil {
		t.Fatal("Until found nothing")
	}
	if match.ID().Slot() != 0 {
		t.Errorf("Expected lowest-slot match 0, got %d", match.ID().Slot())
	}
}

func TestEnqueueTaskRequiresEnabledUpcall(t *testing.T) {
	table := newTestTable(t)
	svc, _ := table.Spawn("svc")
	client, _ := table.Spawn("client")

	task := Task{Initiator: client.ID(), Upcall: UpcallService}

	// Never subscribed
	if err := svc.EnqueueTask(task); !errors.Is(err, errcode.Off) {
		t.Errorf("Expected Off for unsubscribed service upcall, got %v", err)
	}

	if err := svc.Subscribe(0); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := svc.EnqueueTask(task); err != nil {
		t.Errorf("Enqueue after subscribe failed: %v", err)
	}

	// Explicitly off
	svc.SetUpcallOff(0)
	if err := svc.EnqueueTask(task); !errors.Is(err, errcode.Off) {
		t.Errorf("Expected Off for disabled upcall, got %v", err)
	}
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	table := newTestTable(t)
	svc, _ := table.Spawn("svc")
	client, _ := table.Spawn("client")
	svc.Subscribe(0)

	task := Task{Initiator: client.ID(), Upcall: UpcallService}
	for i := 0; i < 2; i++ {
		if err := svc.EnqueueTask(task); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}
	if err := svc.EnqueueTask(task); !errors.Is(err, errcode.NoMem) {
		t.Errorf("Expected NoMem on full queue, got %v", err)
	}
}

func TestTaskQueueFIFO(t *testing.T) {
	table := newTestTable(t)
	svc, _ := table.Spawn("svc")
	svc.Subscribe(0)
	a, _ := table.Spawn("a")
	b, _ := table.Spawn("b")

	svc.EnqueueTask(Task{Initiator: a.ID(), Upcall: UpcallService})
	svc.EnqueueTask(Task{Initiator: b.ID(), Upcall: UpcallService})

	first, ok := svc.DequeueTask()
	if !ok || first.Initiator != a.ID() {
		t.Errorf("Expected first task from %s, got %+v", a.ID(), first)
	}
	second, ok := svc.DequeueTask()
	if !ok || second.Initiator != b.ID() {
		t.Errorf("Expected second task from %s, got %+v", b.ID(), second)
	}
	if _, ok := svc.DequeueTask(); ok {
		t.Error("Dequeue on empty queue reported a task")
	}
}

func TestClientTaskTargetsSlotPlusOne(t *testing.T) {
	table := newTestTable(t)
	svc, _ := table.Spawn("svc")
	table.Spawn("filler")
	client, _ := table.Spawn("client") // slot 2

	// Client upcall for slot 2 lives at upcall slot 3.
	if err := svc.EnqueueTask(Task{Initiator: client.ID(), Upcall: UpcallClient}); !errors.Is(err, errcode.Off) {
		t.Fatalf("Expected Off before subscribing, got %v", err)
	}
	svc.Subscribe(3)
	if err := svc.EnqueueTask(Task{Initiator: client.ID(), Upcall: UpcallClient}); err != nil {
		t.Errorf("Enqueue after subscribing client upcall failed: %v", err)
	}
}

func TestScheduleUpcallAndDrain(t *testing.T) {
	table := newTestTable(t)
	p, _ := table.Spawn("svc")
	p.Subscribe(0)

	if err := p.ScheduleUpcall(0, [3]uint32{5, 16, 0x2000_0000}); err != nil {
		t.Fatalf("ScheduleUpcall failed: %v", err)
	}
	got := p.DrainUpcalls()
	if len(got) != 1 {
		t.Fatalf("Expected 1 upcall, got %d", len(got))
	}
	want := ScheduledUpcall{Slot: 0, Args: [3]uint32{5, 16, 0x2000_0000}}
	if got[0] != want {
		t.Errorf("Upcall = %+v, want %+v", got[0], want)
	}
	if len(p.DrainUpcalls()) != 0 {
		t.Error("Drain did not empty the queue")
	}
}

func TestAllocBufferAddressesAreDisjoint(t *testing.T) {
	table := newTestTable(t)
	a, _ := table.Spawn("a")
	b, _ := table.Spawn("b")

	addrA1, err := a.AllocBuffer(16)
	if err != nil {
		t.Fatalf("AllocBuffer failed: %v", err)
	}
	addrA2, _ := a.AllocBuffer(16)
	if addrA2 != addrA1+16 {
		t.Errorf("Expected bump allocation, got %#x then %#x", addrA1, addrA2)
	}

	addrB, _ := b.AllocBuffer(16)
	if addrB == addrA1 {
		t.Error("Buffers of different processes share an address")
	}
}

func TestAllocBufferExhaustion(t *testing.T) {
	table := newTestTable(t)
	p, _ := table.Spawn("a")
	if _, err := p.AllocBuffer(0x1000); err != nil {
		t.Fatalf("First allocation failed: %v", err)
	}
	if _, err := p.AllocBuffer(1); !errors.Is(err, errcode.NoMem) {
		t.Errorf("Expected NoMem, got %v", err)
	}
}

func TestTerminatedProcessRejectsWork(t *testing.T) {
	table := newTestTable(t)
	p, _ := table.Spawn("a")
	p.Subscribe(0)
	other, _ := table.Spawn("b")
	table.Terminate(p.ID())

	if err := p.EnqueueTask(Task{Initiator: other.ID(), Upcall: UpcallService}); !errors.Is(err, errcode.NoDevice) {
		t.Errorf("Expected NoDevice on enqueue, got %v", err)
	}
	if err := p.ScheduleUpcall(0, [3]uint32{}); !errors.Is(err, errcode.NoDevice) {
		t.Errorf("Expected NoDevice on upcall, got %v", err)
	}
	if p.AddMPURegion(0x2000_0000, 16, 16) {
		t.Error("MPU region installed on a dead process")
	}
}

func TestReclaimHookRunsOnTerminate(t *testing.T) {
	table := newTestTable(t)
	var reclaimed []ProcessID
	table.OnReclaim(func(id ProcessID) { reclaimed = append(reclaimed, id) })

	p, _ := table.Spawn("a")
	table.Terminate(p.ID())

	if len(reclaimed) != 1 || reclaimed[0] != p.ID() {
		t.Errorf("Reclaim hook got %v, want [%s]", reclaimed, p.ID())
	}
}
