package transit

import "slices"

const (
	Forward = 1
	Reverse = -1
)

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Stop struct {
	Name     string `json:"name"`
	Location Point  `json:"location"`
}

// Route is immutable after load. Stops[i] names the stop at Path[i].
type Route struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Color string   `json:"color"`
	Path  []Point  `json:"path"`
	Stops []string `json:"stops"`
}

func (r *Route) LastIndex() int { return len(r.Path) - 1 }

// StopIndex returns the waypoint index of the named stop, or -1.
func (r *Route) StopIndex(name string) int {
	return slices.Index(r.Stops, name)
}

func (r *Route) HasStop(name string) bool { return r.StopIndex(name) >= 0 }

// BusState is the animation state of the single bus running a route.
type BusState struct {
	SegmentIndex int     `json:"segmentIndex"`
	Progress     float64 `json:"progress"` // 0..1 along the active leg
	Direction    int     `json:"direction"`
}

func InitialBusState() BusState {
	return BusState{SegmentIndex: 0, Progress: 0, Direction: Forward}
}
