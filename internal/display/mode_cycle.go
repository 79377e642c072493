package display

import (
	"sync"

	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/rotation"
	"github.com/irfndi/tickerwall/internal/scheduler"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

// ModeCycleSnapshot is the rendered state of the whole display.
type ModeCycleSnapshot struct {
	Modes           []string `json:"modes"`
	ActiveIndex     int      `json:"active_index"`
	ActiveMode      string   `json:"active_mode"`
	NextMode        string   `json:"next_mode"`
	IsTransitioning bool     `json:"is_transitioning"`
	LapKey          int64    `json:"lap_key"`
	Running         bool     `json:"running"`
	Detail          any      `json:"detail,omitempty"`
}

// ModeCycle shows one mode at a time and moves to the next when the active
// mode reports completion. Only the active mode is ever mounted.
type ModeCycle struct {
	modes  []Mode
	rot    *rotation.Rotation
	logger *logging.StandardLogger

	// switchMu serialises mounting against Stop.
	switchMu sync.Mutex

	mu       sync.Mutex
	active   int
	mountGen uint64
	running  bool
}

// NewModeCycle creates a stopped cycle over modes. The rotation runs in
// manual mode; only completions advance it. Modes that report Empty are
// left out.
func NewModeCycle(modes []Mode, transition rotation.Config, clock scheduler.Clock, logger *logging.StandardLogger) *ModeCycle {
	if logger == nil {
		logger = logging.NewStandardLoggerFrom(telemetry.Logger())
	}
	kept := make([]Mode, 0, len(modes))
	for _, mode := range modes {
		if e, ok := mode.(emptyMode); ok && e.Empty() {
			logger.WithComponent("mode_cycle").Warn("Skipping mode with nothing to show", "mode", mode.Name())
			continue
		}
		kept = append(kept, mode)
	}
	m := &ModeCycle{
		modes:  kept,
		logger: logger,
	}
	transition.Period = 0
	m.rot = rotation.New(len(kept), transition, clock, nil, rotation.WithOnSwitch(m.onSwitch))
	return m
}

// Start mounts the first mode.
func (m *ModeCycle) Start() {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	if m.running || len(m.modes) == 0 {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mountGen++
	gen := m.mountGen
	mode := m.modes[m.active]
	m.mu.Unlock()

	m.rot.Start()
	m.logger.WithComponent("mode_cycle").Info("Mounting mode", "mode", mode.Name())
	mode.Mount(m.listenerFor(gen))
}

// Stop unmounts the active mode and halts the cycle.
func (m *ModeCycle) Stop() {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mountGen++
	mode := m.modes[m.active]
	m.mu.Unlock()

	m.rot.Stop()
	mode.Unmount()
}

// listenerFor returns the completion listener for one mount. Completions
// from an earlier mount are ignored.
func (m *ModeCycle) listenerFor(gen uint64) rotation.LapListener {
	return rotation.LapFunc(func() {
		m.mu.Lock()
		current := m.running && gen == m.mountGen
		name := m.modes[m.active].Name()
		m.mu.Unlock()

		if !current {
			m.logger.WithComponent("mode_cycle").Debug("Ignoring completion from inactive mode")
			return
		}
		if m.rot.Trigger() {
			m.logger.WithComponent("mode_cycle").Info("Mode complete, switching", "mode", name)
		}
	})
}

func (m *ModeCycle) onSwitch(index int) {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	prev := m.modes[m.active]
	m.active = index
	m.mountGen++
	gen := m.mountGen
	next := m.modes[index]
	lapKey := m.rot.State().LapKey
	m.mu.Unlock()

	prev.Unmount()
	m.logger.LogRotationEvent("mode", index, lapKey, index == 0)
	next.Mount(m.listenerFor(gen))
}

// Active returns the current mode, or nil for an empty cycle.
func (m *ModeCycle) Active() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.modes) == 0 {
		return nil
	}
	return m.modes[m.active]
}

// Snapshot returns the current state including the active mode's detail.
func (m *ModeCycle) Snapshot() ModeCycleSnapshot {
	state := m.rot.State()

	m.mu.Lock()
	names := make([]string, len(m.modes))
	for i, mode := range m.modes {
		names[i] = mode.Name()
	}
	snap := ModeCycleSnapshot{
		Modes:           names,
		ActiveIndex:     m.active,
		IsTransitioning: state.IsTransitioning,
		LapKey:          state.LapKey,
		Running:         m.running,
	}
	var active Mode
	if len(m.modes) > 0 {
		active = m.modes[m.active]
		snap.ActiveMode = names[m.active]
		snap.NextMode = names[(m.active+1)%len(names)]
	}
	m.mu.Unlock()

	if active != nil {
		snap.Detail = active.Snapshot()
	}
	return snap
}
