package transit

import (
	"fmt"
	"time"
)

type JourneyState string

const (
	JourneyWaiting JourneyState = "waiting"
	JourneyOnBus   JourneyState = "on_bus"
	JourneyArrived JourneyState = "arrived"
)

type ETAStatus string

const (
	ETAMinutes       ETAStatus = "minutes"
	ETAArriving      ETAStatus = "arriving"
	ETAPassed        ETAStatus = "passed"
	ETANotApplicable ETAStatus = "not_applicable"
	ETAInactive      ETAStatus = "inactive"
)

// ETA is a cosmetic arrival estimate for the pickup stop. Minutes is only
// meaningful when Status is ETAMinutes.
type ETA struct {
	Status  ETAStatus `json:"status"`
	Minutes int       `json:"minutes,omitempty"`
}

func (e ETA) String() string {
	switch e.Status {
	case ETAMinutes:
		return fmt.Sprintf("%d min", e.Minutes)
	case ETAArriving:
		return "Arriving"
	case ETAPassed:
		return "Passed"
	default:
		return "--"
	}
}

// Snapshot is the read-only view handed to presentation layers after every
// state change.
type Snapshot struct {
	SessionID string            `json:"sessionId"`
	Running   bool              `json:"running"`
	Tick      uint64            `json:"tick"`
	Timestamp time.Time         `json:"timestamp"`
	Routes    []RouteSnapshot   `json:"routes"`
	Passenger PassengerSnapshot `json:"passenger"`
}

type RouteSnapshot struct {
	RouteID          string   `json:"routeId"`
	Name             string   `json:"name"`
	Color            string   `json:"color"`
	Stops            []string `json:"stops"`
	Position         Point    `json:"position"`
	NearestStop      string   `json:"nearestStop"`
	Bearing          float64  `json:"bearing"`
	Direction        int      `json:"direction"`
	SegmentIndex     int      `json:"segmentIndex"`
	Progress         float64  `json:"progress"`
	ETA              ETA      `json:"eta"`
	ServesJourney    bool     `json:"servesJourney"`
	CanBoard         bool     `json:"canBoard"`
	CanDisembark     bool     `json:"canDisembark"`
	PassengerOnBoard bool     `json:"passengerOnBoard"`
}

type PassengerSnapshot struct {
	State          JourneyState `json:"state"`
	BoardedRouteID string       `json:"boardedRouteId,omitempty"`
	Position       Point        `json:"position"`
	Pickup         Stop         `json:"pickup"`
	Destination    Stop         `json:"destination"`
	TravelSeconds  *int64       `json:"travelSeconds,omitempty"`
}

// Route looks up a route entry by ID.
func (s *Snapshot) Route(id string) (RouteSnapshot, bool) {
	for _, r := range s.Routes {
		if r.RouteID == id {
			return r, true
		}
	}
	return RouteSnapshot{}, false
}
