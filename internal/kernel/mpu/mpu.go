// Package mpu models the memory-protection-unit regions granted to each
// process slot.
//
// The IPC dispatch path installs one region per delivered notification so the
// target can reach the initiator's shared buffer. Region lifetime and
// reclamation belong to the process-memory layout, not to the installer, so
// installation is idempotent for an identical range.
package mpu

import "sync"

// Region is one read/write window into another process's memory.
type Region struct {
	Base uint32 `json:"base"`
	Len  uint32 `json:"len"`
}

// Contains reports whether [base, base+length) falls inside the region.
func (r Region) Contains(base, length uint32) bool {
	if length > ^uint32(0)-base {
		// The range wraps the address space; no region contains it.
		return false
	}
	return base >= r.Base && base+length <= r.Base+r.Len
}

// Manager installs and inspects regions per process slot. The process table
// owns the slot lifecycle and clears regions when a slot is vacated.
type Manager interface {
	// AddRegion grants slot read/write access to [base, base+length).
	// minLength is the smallest acceptable grant; reports false when even
	// that cannot be installed. Re-adding an identical region succeeds
	// without consuming a hardware slot.
	AddRegion(slot int, base, length, minLength uint32) bool
	// Regions returns the regions currently installed for slot.
	Regions(slot int) []Region
	// ClearRegions removes every region installed for slot.
	ClearRegions(slot int)
}

// RegionsPerSlot is the hardware region budget per process, matching the
// eight-region MPUs common on Cortex-M parts.
const RegionsPerSlot = 8

// TrackingManager is the in-memory Manager used by the kernel.
type TrackingManager struct {
	mu      sync.Mutex
	regions map[int][]Region
}

// NewTrackingManager creates an empty manager.
func NewTrackingManager() *TrackingManager {
	return &TrackingManager{regions: make(map[int][]Region)}
}

// AddRegion implements Manager.
func (m *TrackingManager) AddRegion(slot int, base, length, minLength uint32) bool {
	if length == 0 || length < minLength {
		return false
	}
	if length > ^uint32(0)-base {
		// [base, base+length) wraps the address space.
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regions[slot] {
		if r.Base == base && r.Len == length {
			return true
		}
	}
	if len(m.regions[slot]) >= RegionsPerSlot {
		return false
	}
	m.regions[slot] = append(m.regions[slot], Region{Base: base, Len: length})
	return true
}

// Regions implements Manager.
func (m *TrackingManager) Regions(slot int) []Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Region, len(m.regions[slot]))
	copy(out, m.regions[slot])
	return out
}

// ClearRegions implements Manager.
func (m *TrackingManager) ClearRegions(slot int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.regions, slot)
}
