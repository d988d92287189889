package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/kestrelvm/kestrel/internal/callbacks"
)

// Manager loads and owns a set of agent hosts.
type Manager struct {
	log   zerolog.Logger
	hosts []*Host
}

// LoadDir loads every *.lua script in dir, in lexical order so agent
// registration order is deterministic. A script that fails to load aborts
// the whole load; agents are trusted extensions, not user input.
func LoadDir(dir string, log zerolog.Logger) (*Manager, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("agent dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".lua" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	m := &Manager{log: log}
	for _, p := range paths {
		h, err := NewHost(p, WithLogger(log))
		if err != nil {
			m.Close()
			return nil, err
		}
		m.hosts = append(m.hosts, h)
	}

	log.Info().Int("agents", len(m.hosts)).Str("dir", dir).Msg("agents loaded")
	return m, nil
}

// Len returns the number of loaded agents.
func (m *Manager) Len() int { return len(m.hosts) }

// Hosts returns the loaded hosts in registration order.
func (m *Manager) Hosts() []*Host { return m.hosts }

// AttachAll registers every agent with d, in load order.
func (m *Manager) AttachAll(d *callbacks.Dispatcher) {
	for _, h := range m.hosts {
		h.Attach(d)
	}
}

// DetachAll unregisters every agent from d.
func (m *Manager) DetachAll(d *callbacks.Dispatcher) {
	for _, h := range m.hosts {
		h.Detach(d)
	}
}

// Close releases every agent's Lua state. Detach first.
func (m *Manager) Close() {
	for _, h := range m.hosts {
		h.Close()
	}
}
