package sim

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"bus-simulator/internal/transit"
)

// Simulation holds all state of one demo run: the routes, one bus per route
// and the passenger journey. It owns no timer; callers drive it with Tick.
// A Simulation is not safe for concurrent use; see Manager.
type Simulation struct {
	routes  []transit.Route
	byID    map[string]int
	buses   []transit.BusState
	journey *Journey

	step float64
	now  func() time.Time
	rng  *rand.Rand

	sessionID string
	running   bool
	ticks     uint64
}

type Option func(*Simulation)

// WithStepSize sets the fraction of a segment covered per tick.
func WithStepSize(step float64) Option {
	return func(s *Simulation) { s.step = step }
}

// WithClock replaces time.Now for boarding timestamps and snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Simulation) { s.now = now }
}

// WithRand sets the ETA jitter source. A seeded source makes ETAs reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) { s.rng = rng }
}

func New(network transit.Network, opts ...Option) (*Simulation, error) {
	if err := network.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network: %w", err)
	}
	s := &Simulation{
		routes:  make([]transit.Route, len(network.Routes)),
		byID:    make(map[string]int, len(network.Routes)),
		buses:   make([]transit.BusState, len(network.Routes)),
		journey: NewJourney(network.Pickup, network.Destination),
		step:    DefaultStepSize,
		now:     time.Now,
	}
	copy(s.routes, network.Routes)
	for i, r := range s.routes {
		s.byID[r.ID] = i
		s.buses[i] = transit.InitialBusState()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.step <= 0 || s.step >= 1 {
		return nil, fmt.Errorf("step size must be in (0,1), got %v", s.step)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.sessionID = uuid.NewString()
	return s, nil
}

func (s *Simulation) Start()        { s.running = true }
func (s *Simulation) Stop()         { s.running = false }
func (s *Simulation) Running() bool { return s.running }
func (s *Simulation) Ticks() uint64 { return s.ticks }

func (s *Simulation) SessionID() string { return s.sessionID }
func (s *Simulation) Journey() *Journey { return s.journey }

// Routes returns the configured routes in configuration order.
func (s *Simulation) Routes() []transit.Route { return s.routes }

// Bus returns the animation state of a route's bus.
func (s *Simulation) Bus(routeID string) (transit.BusState, bool) {
	i, ok := s.byID[routeID]
	if !ok {
		return transit.BusState{}, false
	}
	return s.buses[i], true
}

// BusPosition returns the interpolated position of a route's bus.
func (s *Simulation) BusPosition(routeID string) (transit.Point, bool) {
	i, ok := s.byID[routeID]
	if !ok {
		return transit.Point{}, false
	}
	return Position(&s.routes[i], s.buses[i]), true
}

// Tick advances every bus by one step.
func (s *Simulation) Tick() {
	for i := range s.routes {
		Advance(&s.routes[i], &s.buses[i], s.step)
	}
	s.ticks++
}

// Reset stops the run and discards all accumulated state.
func (s *Simulation) Reset() {
	s.running = false
	s.ticks = 0
	for i := range s.buses {
		s.buses[i] = transit.InitialBusState()
	}
	s.journey.Reset()
	s.sessionID = uuid.NewString()
}

func (s *Simulation) lookup(routeID string) (*transit.Route, transit.Point, error) {
	i, ok := s.byID[routeID]
	if !ok {
		return nil, transit.Point{}, fmt.Errorf("%w: %q", ErrUnknownRoute, routeID)
	}
	return &s.routes[i], Position(&s.routes[i], s.buses[i]), nil
}

func (s *Simulation) CanBoard(routeID string) bool {
	r, pos, err := s.lookup(routeID)
	return err == nil && s.journey.CanBoard(r, pos)
}

func (s *Simulation) CanDisembark(routeID string) bool {
	r, pos, err := s.lookup(routeID)
	return err == nil && s.journey.CanDisembark(r, pos)
}

func (s *Simulation) AttemptBoarding(routeID string) error {
	if !s.running {
		return ErrNotRunning
	}
	r, pos, err := s.lookup(routeID)
	if err != nil {
		return err
	}
	return s.journey.Board(r, pos, s.now())
}

func (s *Simulation) AttemptDisembark(routeID string) (time.Duration, error) {
	if !s.running {
		return 0, ErrNotRunning
	}
	r, pos, err := s.lookup(routeID)
	if err != nil {
		return 0, err
	}
	return s.journey.Disembark(r, pos, s.now())
}

type Action string

const (
	ActionBoarded     Action = "boarded"
	ActionDisembarked Action = "disembarked"
)

// Outcome describes what Interact did.
type Outcome struct {
	Action     Action        `json:"action"`
	RouteID    string        `json:"routeId"`
	TravelTime time.Duration `json:"travelTime,omitempty"`
}

// Interact is the single "tap the bus" action: board while waiting, get off
// when riding this bus.
func (s *Simulation) Interact(routeID string) (Outcome, error) {
	if !s.running {
		return Outcome{}, ErrNotRunning
	}
	if _, _, err := s.lookup(routeID); err != nil {
		return Outcome{}, err
	}
	switch {
	case s.journey.Waiting():
		if err := s.AttemptBoarding(routeID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionBoarded, RouteID: routeID}, nil
	case s.journey.OnBus() && s.journey.BoardedRouteID() == routeID:
		d, err := s.AttemptDisembark(routeID)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionDisembarked, RouteID: routeID, TravelTime: d}, nil
	case s.journey.OnBus():
		return Outcome{}, ErrAlreadyRiding
	default:
		return Outcome{}, ErrTripCompleted
	}
}

// Snapshot captures the current state for presentation.
func (s *Simulation) Snapshot() transit.Snapshot {
	j := s.journey
	snap := transit.Snapshot{
		SessionID: s.sessionID,
		Running:   s.running,
		Tick:      s.ticks,
		Timestamp: s.now(),
		Routes:    make([]transit.RouteSnapshot, 0, len(s.routes)),
		Passenger: transit.PassengerSnapshot{
			State:          j.State(),
			BoardedRouteID: j.BoardedRouteID(),
			Position:       j.Pickup.Location,
			Pickup:         j.Pickup,
			Destination:    j.Destination,
		},
	}
	for i := range s.routes {
		r := &s.routes[i]
		st := s.buses[i]
		pos := Position(r, st)
		onBoard := j.OnBus() && j.BoardedRouteID() == r.ID
		if onBoard {
			snap.Passenger.Position = pos
		}
		snap.Routes = append(snap.Routes, transit.RouteSnapshot{
			RouteID:          r.ID,
			Name:             r.Name,
			Color:            r.Color,
			Stops:            append([]string(nil), r.Stops...),
			Position:         pos,
			NearestStop:      NearestStop(r, st),
			Bearing:          Heading(r, st),
			Direction:        st.Direction,
			SegmentIndex:     st.SegmentIndex,
			Progress:         st.Progress,
			ETA:              CalculateETA(r, st, j.Pickup, s.running, s.rng),
			ServesJourney:    j.Serves(r),
			CanBoard:         j.CanBoard(r, pos),
			CanDisembark:     j.CanDisembark(r, pos),
			PassengerOnBoard: onBoard,
		})
	}
	if d, ok := j.TravelTime(); ok {
		secs := int64(d / time.Second)
		snap.Passenger.TravelSeconds = &secs
		snap.Passenger.Position = j.Destination.Location
	}
	return snap
}
