package config

import "testing"

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != "8000" {
		t.Errorf("Port = %s, want 8000", cfg.Server.Port)
	}
	if cfg.Kernel.MaxProcs != 8 {
		t.Errorf("MaxProcs = %d, want 8", cfg.Kernel.MaxProcs)
	}
	if cfg.Kernel.TaskQueueDepth != 10 || cfg.Kernel.UpcallQueueDepth != 10 {
		t.Errorf("Queue depths = %d/%d, want 10/10", cfg.Kernel.TaskQueueDepth, cfg.Kernel.UpcallQueueDepth)
	}
	if cfg.Kernel.GrantBudget != 0 {
		t.Errorf("GrantBudget = %d, want 0 (unbounded)", cfg.Kernel.GrantBudget)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("Rate limiting should default to enabled")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KERNEL_MAX_PROCS", "16")
	t.Setenv("BOOT_MANIFEST", "/etc/tock/board.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Server.Port)
	}
	if cfg.Kernel.MaxProcs != 16 {
		t.Errorf("MaxProcs = %d, want 16", cfg.Kernel.MaxProcs)
	}
	if cfg.Boot.ManifestPath != "/etc/tock/board.yaml" {
		t.Errorf("ManifestPath = %s", cfg.Boot.ManifestPath)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("KERNEL_MAX_PROCS", "not-a-number")

	if _, err := Load(); err == nil {
		t.Error("Expected error for non-numeric KERNEL_MAX_PROCS")
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("KERNEL_MAX_PROCS", "not-a-number")

	cfg := LoadOrDefault()
	if cfg.Kernel.MaxProcs != 8 {
		t.Errorf("MaxProcs = %d, want default 8", cfg.Kernel.MaxProcs)
	}
}
