package sim

import (
	"time"

	"bus-simulator/internal/transit"
)

// ProximityKm gates both boarding and disembarking (100 m).
const ProximityKm = 0.1

// Journey is the single passenger's trip: waiting -> on_bus -> arrived.
type Journey struct {
	Pickup      transit.Stop
	Destination transit.Stop

	state          transit.JourneyState
	boardedRouteID string
	boardedAt      time.Time
	travelTime     time.Duration
}

func NewJourney(pickup, destination transit.Stop) *Journey {
	return &Journey{Pickup: pickup, Destination: destination, state: transit.JourneyWaiting}
}

func (j *Journey) State() transit.JourneyState { return j.state }
func (j *Journey) Waiting() bool               { return j.state == transit.JourneyWaiting }
func (j *Journey) OnBus() bool                 { return j.state == transit.JourneyOnBus }
func (j *Journey) TripCompleted() bool         { return j.state == transit.JourneyArrived }
func (j *Journey) BoardedRouteID() string      { return j.boardedRouteID }
func (j *Journey) BoardedAt() time.Time        { return j.boardedAt }

// TravelTime is the ride duration, valid once arrived.
func (j *Journey) TravelTime() (time.Duration, bool) {
	return j.travelTime, j.state == transit.JourneyArrived
}

// Serves reports whether the route lists both the pickup and destination stops.
func (j *Journey) Serves(r *transit.Route) bool {
	return r.HasStop(j.Pickup.Name) && r.HasStop(j.Destination.Name)
}

// CheckBoard returns nil when the passenger may board r with its bus at busPos,
// otherwise the reason it may not.
func (j *Journey) CheckBoard(r *transit.Route, busPos transit.Point) error {
	switch j.state {
	case transit.JourneyOnBus:
		return ErrAlreadyRiding
	case transit.JourneyArrived:
		return ErrTripCompleted
	}
	if !j.Serves(r) {
		return ErrRouteNotServing
	}
	if DistanceKm(busPos, j.Pickup.Location) >= ProximityKm {
		return ErrBusTooFar
	}
	return nil
}

func (j *Journey) CanBoard(r *transit.Route, busPos transit.Point) bool {
	return j.CheckBoard(r, busPos) == nil
}

func (j *Journey) Board(r *transit.Route, busPos transit.Point, now time.Time) error {
	if err := j.CheckBoard(r, busPos); err != nil {
		return err
	}
	j.state = transit.JourneyOnBus
	j.boardedRouteID = r.ID
	j.boardedAt = now
	return nil
}

// CheckDisembark returns nil when the passenger may leave r with its bus at busPos.
func (j *Journey) CheckDisembark(r *transit.Route, busPos transit.Point) error {
	switch j.state {
	case transit.JourneyWaiting:
		return ErrNotOnBus
	case transit.JourneyArrived:
		return ErrTripCompleted
	}
	if j.boardedRouteID != r.ID {
		return ErrWrongBus
	}
	if DistanceKm(busPos, j.Destination.Location) >= ProximityKm {
		return ErrNotAtDestination
	}
	return nil
}

func (j *Journey) CanDisembark(r *transit.Route, busPos transit.Point) bool {
	return j.CheckDisembark(r, busPos) == nil
}

// Disembark completes the trip and returns the ride time in whole seconds.
func (j *Journey) Disembark(r *transit.Route, busPos transit.Point, now time.Time) (time.Duration, error) {
	if err := j.CheckDisembark(r, busPos); err != nil {
		return 0, err
	}
	d := now.Sub(j.boardedAt)
	if d < 0 {
		d = 0
	}
	j.travelTime = d.Round(time.Second)
	j.state = transit.JourneyArrived
	return j.travelTime, nil
}

// Reset returns to waiting with every trip field cleared.
func (j *Journey) Reset() {
	j.state = transit.JourneyWaiting
	j.boardedRouteID = ""
	j.boardedAt = time.Time{}
	j.travelTime = 0
}
