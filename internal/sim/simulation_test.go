package sim

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-simulator/internal/transit"
)

// fakeClock advances one second per call.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func lineNetwork() transit.Network {
	return transit.Network{
		Routes:      []transit.Route{lineRoute()},
		Pickup:      transit.Stop{Name: "B", Location: transit.Point{Lat: 0, Lon: 1}},
		Destination: transit.Stop{Name: "C", Location: transit.Point{Lat: 0, Lon: 2}},
	}
}

func newLineSim(t *testing.T) *Simulation {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	s, err := New(lineNetwork(), WithClock(clock.Now), WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	return s
}

func tickUntil(t *testing.T, s *Simulation, routeID string, cond func(transit.BusState) bool) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		s.Tick()
		st, _ := s.Bus(routeID)
		if cond(st) {
			return
		}
	}
	t.Fatalf("condition not reached on route %s", routeID)
}

func TestSimulation_EndToEndJourney(t *testing.T) {
	s := newLineSim(t)
	s.Start()

	assert.False(t, s.CanBoard("R"))
	assert.ErrorIs(t, s.AttemptBoarding("R"), ErrBusTooFar)

	tickUntil(t, s, "R", func(st transit.BusState) bool { return st.SegmentIndex == 1 && st.Progress == 0 })
	pos, _ := s.BusPosition("R")
	assert.InDelta(t, 0, DistanceKm(pos, s.Journey().Pickup.Location), 1e-9)
	require.True(t, s.CanBoard("R"))
	require.NoError(t, s.AttemptBoarding("R"))
	assert.ErrorIs(t, s.AttemptBoarding("R"), ErrAlreadyRiding)

	snap := s.Snapshot()
	assert.Equal(t, transit.JourneyOnBus, snap.Passenger.State)
	assert.Equal(t, "R", snap.Passenger.BoardedRouteID)
	assert.Equal(t, pos, snap.Passenger.Position)

	assert.False(t, s.CanDisembark("R"))
	_, err := s.AttemptDisembark("R")
	assert.ErrorIs(t, err, ErrNotAtDestination)

	tickUntil(t, s, "R", func(st transit.BusState) bool { return st.SegmentIndex == 2 })
	require.True(t, s.CanDisembark("R"))
	d, err := s.AttemptDisembark("R")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, time.Duration(0))

	snap = s.Snapshot()
	assert.Equal(t, transit.JourneyArrived, snap.Passenger.State)
	require.NotNil(t, snap.Passenger.TravelSeconds)
	assert.Equal(t, int64(d/time.Second), *snap.Passenger.TravelSeconds)
	assert.Equal(t, s.Journey().Destination.Location, snap.Passenger.Position)
}

func TestSimulation_Reset(t *testing.T) {
	net := transit.DefaultNetwork()
	s, err := New(net)
	require.NoError(t, err)
	s.Start()
	firstSession := s.SessionID()

	// DN18 reaches Park Street after one segment.
	tickUntil(t, s, "DN18", func(st transit.BusState) bool { return st.SegmentIndex == 1 })
	require.NoError(t, s.AttemptBoarding("DN18"))
	for i := 0; i < 50; i++ {
		s.Tick()
	}

	s.Reset()
	for _, r := range net.Routes {
		st, ok := s.Bus(r.ID)
		require.True(t, ok)
		assert.Equal(t, transit.InitialBusState(), st, r.ID)
	}
	j := s.Journey()
	assert.True(t, j.Waiting())
	assert.Empty(t, j.BoardedRouteID())
	assert.True(t, j.BoardedAt().IsZero())
	assert.False(t, s.Running())
	assert.Zero(t, s.Ticks())
	assert.NotEqual(t, firstSession, s.SessionID())
}

func TestSimulation_RejectsWhenStopped(t *testing.T) {
	s := newLineSim(t)
	assert.ErrorIs(t, s.AttemptBoarding("R"), ErrNotRunning)
	_, err := s.AttemptDisembark("R")
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = s.Interact("R")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestSimulation_UnknownRoute(t *testing.T) {
	s := newLineSim(t)
	s.Start()
	err := s.AttemptBoarding("nope")
	assert.ErrorIs(t, err, ErrUnknownRoute)
	assert.Equal(t, "unknown_route", Reason(err))
	assert.False(t, s.CanBoard("nope"))
	_, ok := s.Bus("nope")
	assert.False(t, ok)
}

func TestSimulation_NonServingRouteRejectedDistinctly(t *testing.T) {
	s, err := New(transit.DefaultNetwork())
	require.NoError(t, err)
	s.Start()
	// S15 never lists Park Street; DN18 does but its bus starts at Howrah.
	assert.ErrorIs(t, s.AttemptBoarding("S15"), ErrRouteNotServing)
	assert.ErrorIs(t, s.AttemptBoarding("DN18"), ErrBusTooFar)
}

func TestSimulation_Interact(t *testing.T) {
	s := newLineSim(t)
	s.Start()

	tickUntil(t, s, "R", func(st transit.BusState) bool { return st.SegmentIndex == 1 })
	out, err := s.Interact("R")
	require.NoError(t, err)
	assert.Equal(t, ActionBoarded, out.Action)

	_, err = s.Interact("R")
	assert.ErrorIs(t, err, ErrNotAtDestination)

	tickUntil(t, s, "R", func(st transit.BusState) bool { return st.SegmentIndex == 2 })
	out, err = s.Interact("R")
	require.NoError(t, err)
	assert.Equal(t, ActionDisembarked, out.Action)
	assert.Greater(t, out.TravelTime, time.Duration(0))

	_, err = s.Interact("R")
	assert.ErrorIs(t, err, ErrTripCompleted)
}

func TestSimulation_InvalidConfiguration(t *testing.T) {
	net := lineNetwork()
	net.Routes[0].Path = net.Routes[0].Path[:1]
	net.Routes[0].Stops = net.Routes[0].Stops[:1]
	_, err := New(net)
	assert.Error(t, err)

	_, err = New(lineNetwork(), WithStepSize(1.5))
	assert.Error(t, err)
}

func TestSimulation_SnapshotFlags(t *testing.T) {
	s, err := New(transit.DefaultNetwork(), WithRand(rand.New(rand.NewPCG(7, 7))))
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Routes, 3)
	assert.Equal(t, transit.JourneyWaiting, snap.Passenger.State)
	assert.Equal(t, snap.Passenger.Pickup.Location, snap.Passenger.Position)
	assert.Nil(t, snap.Passenger.TravelSeconds)

	dn18, ok := snap.Route("DN18")
	require.True(t, ok)
	assert.True(t, dn18.ServesJourney)
	assert.Equal(t, "Howrah Station", dn18.NearestStop)
	assert.Equal(t, transit.ETAInactive, dn18.ETA.Status)

	s15, ok := snap.Route("S15")
	require.True(t, ok)
	assert.False(t, s15.ServesJourney)
	assert.Equal(t, transit.ETANotApplicable, s15.ETA.Status)

	s.Start()
	snap = s.Snapshot()
	dn18, _ = snap.Route("DN18")
	assert.Equal(t, transit.ETAMinutes, dn18.ETA.Status)
	assert.True(t, snap.Running)
}
