package boot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jettr/tock/internal/kernel/mpu"
	"github.com/jettr/tock/internal/kernel/proc"
)

const sampleManifest = `
board: sim
apps:
  - name: console
    service: true
  - name: sensor
  - name: console-client
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Board != "sim" {
		t.Errorf("Board = %q, want sim", m.Board)
	}
	if len(m.Apps) != 3 {
		t.Fatalf("Apps = %d, want 3", len(m.Apps))
	}
	if !m.Apps[0].Service || m.Apps[1].Service {
		t.Errorf("Service flags wrong: %+v", m.Apps)
	}
}

func TestParseRejectsNamelessApp(t *testing.T) {
	_, err := Parse([]byte("apps:\n  - service: true\n"))
	if err == nil {
		t.Fatal("Expected error for nameless app")
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("apps: [unclosed"))
	if err == nil {
		t.Fatal("Expected error for malformed document")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Apps) != 3 {
		t.Errorf("Apps = %d, want 3", len(m.Apps))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSeedAssignsSlotsInOrder(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}
	table := proc.NewTable(proc.DefaultConfig(), mpu.NewTrackingManager())
	if err := m.Seed(table, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	for i, want := range []string{"console", "sensor", "console-client"} {
		p, ok := table.Resolve(i)
		if !ok || p.Name() != want {
			t.Errorf("Slot %d = %v, want %q", i, p, want)
		}
	}

	// The service app is notifiable right away, the plain app is not.
	console, _ := table.Resolve(0)
	if console.Subscription(0) != proc.Subscribed {
		t.Errorf("Service app not subscribed")
	}
	sensor, _ := table.Resolve(1)
	if sensor.Subscription(0) == proc.Subscribed {
		t.Errorf("Non-service app subscribed")
	}
}

func TestSeedOverflowingTable(t *testing.T) {
	m := &Manifest{Apps: []App{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	table := proc.NewTable(proc.Config{
		MaxProcs:         2,
		TaskQueueDepth:   1,
		UpcallQueueDepth: 1,
		ProcMemBytes:     0x100,
	}, mpu.NewTrackingManager())
	if err := m.Seed(table, nil); err == nil {
		t.Fatal("Expected error when the manifest exceeds the table")
	}
}
