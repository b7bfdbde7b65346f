package sim

import "errors"

var (
	// ErrNotRunning is returned for passenger actions while the simulation is stopped.
	ErrNotRunning = errors.New("simulation is not running")

	// ErrUnknownRoute is returned when the route ID is not configured.
	ErrUnknownRoute = errors.New("unknown route")

	// ErrAlreadyRiding is returned when boarding while already on a bus.
	ErrAlreadyRiding = errors.New("already riding a bus")

	// ErrTripCompleted is returned for any passenger action after arrival.
	ErrTripCompleted = errors.New("trip already completed")

	// ErrRouteNotServing is returned when the route does not serve both pickup and destination.
	ErrRouteNotServing = errors.New("route does not serve this journey")

	// ErrBusTooFar is returned when the bus is not within boarding distance of the pickup stop.
	ErrBusTooFar = errors.New("bus is not close enough to board")

	// ErrNotOnBus is returned when disembarking while still waiting.
	ErrNotOnBus = errors.New("not on a bus")

	// ErrWrongBus is returned when disembarking from a bus the passenger did not board.
	ErrWrongBus = errors.New("not on this bus")

	// ErrNotAtDestination is returned when disembarking away from the destination.
	ErrNotAtDestination = errors.New("not near the destination yet")
)

var reasons = []struct {
	err   error
	label string
}{
	{ErrNotRunning, "not_running"},
	{ErrUnknownRoute, "unknown_route"},
	{ErrAlreadyRiding, "already_riding"},
	{ErrTripCompleted, "trip_completed"},
	{ErrRouteNotServing, "route_not_serving"},
	{ErrBusTooFar, "too_far"},
	{ErrNotOnBus, "not_on_bus"},
	{ErrWrongBus, "wrong_bus"},
	{ErrNotAtDestination, "not_at_destination"},
}

// Reason returns a short stable label for a rejection error, "" for nil and
// "other" for anything unrecognised.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "other"
}
