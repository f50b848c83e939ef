// Package boot loads the board manifest: the set of applications placed into
// the process table at startup. The manifest supplies each process's static
// name, which is the identity service discovery matches against.
package boot

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/jettr/tock/internal/infrastructure/logging"
	"github.com/jettr/tock/internal/kernel/proc"
)

// App is one application entry in the manifest.
type App struct {
	// Name is the static application name, analogous to the name carried
	// in the app binary's header. Duplicate names are legal; discovery
	// resolves them by lowest slot.
	Name string `yaml:"name"`
	// Service marks apps that register their service upcall at boot so
	// they are notifiable without an explicit subscribe call.
	Service bool `yaml:"service"`
}

// Manifest is the board definition.
type Manifest struct {
	Board string `yaml:"board"`
	Apps  []App  `yaml:"apps"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates manifest bytes.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i, app := range m.Apps {
		if app.Name == "" {
			return nil, fmt.Errorf("parse manifest: app %d has no name", i)
		}
	}
	return &m, nil
}

// Seed spawns every manifest app into table, in manifest order so slot
// assignment is deterministic. Apps marked as services get their service
// upcall subscribed immediately.
func (m *Manifest) Seed(table *proc.Table, log *logging.Logger) error {
	if log == nil {
		log = logging.NewNop()
	}
	for _, app := range m.Apps {
		p, err := table.Spawn(app.Name)
		if err != nil {
			return fmt.Errorf("seed %q: %w", app.Name, err)
		}
		if app.Service {
			if err := p.Subscribe(0); err != nil {
				return fmt.Errorf("seed %q: subscribe service upcall: %w", app.Name, err)
			}
		}
		log.Info("app loaded",
			zap.String("name", app.Name),
			zap.Stringer("process", p.ID()),
			zap.Bool("service", app.Service),
		)
	}
	return nil
}
