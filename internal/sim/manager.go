package sim

import (
	"context"
	"log"
	"sync"
	"time"

	mmetrics "bus-simulator/internal/metrics"
	"bus-simulator/internal/transit"
)

// Publisher receives a snapshot after every state change.
type Publisher interface {
	PublishSnapshot(snap transit.Snapshot) error
}

// Manager drives a Simulation from a ticker and serialises passenger actions
// against ticks. All access to the Simulation goes through it.
type Manager struct {
	interval time.Duration
	metrics  *mmetrics.Collector

	ctl sync.Mutex // serialises Start/Stop/Reset

	mu  sync.Mutex
	sim *Simulation

	// pubMu is taken before mu is released, so snapshots reach publishers in
	// the order the state changed. Lock order: mu, then pubMu.
	pubMu sync.Mutex
	pubs  []Publisher

	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func NewManager(s *Simulation, interval time.Duration, metrics *mmetrics.Collector, pubs ...Publisher) *Manager {
	if interval <= 0 {
		interval = time.Second
	}
	return &Manager{
		interval: interval,
		metrics:  metrics,
		pubs:     pubs,
		sim:      s,
	}
}

// AddPublisher registers another snapshot consumer.
func (m *Manager) AddPublisher(p Publisher) {
	m.pubMu.Lock()
	m.pubs = append(m.pubs, p)
	m.pubMu.Unlock()
}

// Start begins ticking. It returns false if the simulation is already running
// or parent is already done.
func (m *Manager) Start(parent context.Context) bool {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	if parent.Err() != nil {
		return false
	}
	m.mu.Lock()
	if m.runCancel != nil {
		m.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	m.runCancel = cancel
	m.sim.Start()
	m.runWG.Add(1)
	if m.metrics != nil {
		m.metrics.Running.Set(1)
	}
	snap := m.sim.Snapshot()
	log.Printf("starting simulation %s (tick every %s)", snap.SessionID, m.interval)
	m.publishLocked(snap)

	go func() {
		defer m.runWG.Done()
		m.run(ctx)
	}()
	return true
}

func (m *Manager) run(ctx context.Context) {
	tick := time.NewTicker(m.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.Tick()
		}
	}
}

// Stop halts the ticker and keeps all accumulated state.
func (m *Manager) Stop() {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	m.stop()
}

func (m *Manager) stop() {
	m.mu.Lock()
	cancel := m.runCancel
	m.runCancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.runWG.Wait()

	m.mu.Lock()
	m.sim.Stop()
	if m.metrics != nil {
		m.metrics.Running.Set(0)
	}
	snap := m.sim.Snapshot()
	log.Printf("stopped simulation %s at tick %d", snap.SessionID, snap.Tick)
	m.publishLocked(snap)
}

// Reset stops the ticker and returns buses and passenger to their initial state.
func (m *Manager) Reset() transit.Snapshot {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	m.stop()
	m.mu.Lock()
	m.sim.Reset()
	if m.metrics != nil {
		m.metrics.Resets.Inc()
		m.metrics.Running.Set(0)
	}
	snap := m.sim.Snapshot()
	log.Printf("reset simulation, new session %s", snap.SessionID)
	m.publishLocked(snap)
	return snap
}

// Tick advances the simulation by one step. The ticker calls it; tests and
// external schedulers may call it directly.
func (m *Manager) Tick() transit.Snapshot {
	tickStart := time.Now()
	m.mu.Lock()
	m.sim.Tick()
	snap := m.sim.Snapshot()
	if m.metrics != nil {
		m.metrics.Ticks.Inc()
		m.metrics.TickDuration.Observe(time.Since(tickStart).Seconds())
	}
	m.publishLocked(snap)
	return snap
}

func (m *Manager) Snapshot() transit.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim.Snapshot()
}

func (m *Manager) Routes() []transit.Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim.Routes()
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim.Running()
}

func (m *Manager) AttemptBoarding(routeID string) (transit.Snapshot, error) {
	m.mu.Lock()
	err := m.sim.AttemptBoarding(routeID)
	snap := m.sim.Snapshot()
	if err != nil {
		m.mu.Unlock()
		m.reject("board", routeID, err)
		return snap, err
	}
	m.boarded(routeID)
	m.publishLocked(snap)
	return snap, nil
}

func (m *Manager) AttemptDisembark(routeID string) (time.Duration, transit.Snapshot, error) {
	m.mu.Lock()
	d, err := m.sim.AttemptDisembark(routeID)
	snap := m.sim.Snapshot()
	if err != nil {
		m.mu.Unlock()
		m.reject("disembark", routeID, err)
		return 0, snap, err
	}
	m.disembarked(routeID, d)
	m.publishLocked(snap)
	return d, snap, nil
}

func (m *Manager) Interact(routeID string) (Outcome, transit.Snapshot, error) {
	m.mu.Lock()
	out, err := m.sim.Interact(routeID)
	snap := m.sim.Snapshot()
	if err != nil {
		m.mu.Unlock()
		m.reject("interact", routeID, err)
		return out, snap, err
	}
	switch out.Action {
	case ActionBoarded:
		m.boarded(routeID)
	case ActionDisembarked:
		m.disembarked(routeID, out.TravelTime)
	}
	m.publishLocked(snap)
	return out, snap, nil
}

func (m *Manager) boarded(routeID string) {
	log.Printf("passenger boarded bus %s", routeID)
	if m.metrics != nil {
		m.metrics.Boardings.WithLabelValues(routeID).Inc()
	}
}

func (m *Manager) disembarked(routeID string, d time.Duration) {
	log.Printf("passenger left bus %s after %s", routeID, d)
	if m.metrics != nil {
		m.metrics.Disembarks.WithLabelValues(routeID).Inc()
		m.metrics.TripDuration.Observe(d.Seconds())
	}
}

func (m *Manager) reject(action, routeID string, err error) {
	log.Printf("%s rejected on route %s: %v", action, routeID, err)
	if m.metrics != nil {
		m.metrics.Rejections.WithLabelValues(action, Reason(err)).Inc()
	}
}

// publishLocked must be called with mu held; it releases mu and delivers
// snap to every publisher before any later state change can publish.
func (m *Manager) publishLocked(snap transit.Snapshot) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	m.mu.Unlock()
	for _, p := range m.pubs {
		if err := p.PublishSnapshot(snap); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}
