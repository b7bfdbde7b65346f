package transit

import (
	"errors"
	"fmt"
	"strings"
)

// Network is the full static configuration of a simulation: the routes and
// the single passenger's pickup and destination.
type Network struct {
	Routes      []Route
	Pickup      Stop
	Destination Stop
}

// Validate rejects malformed route configuration before any tick runs.
func (n *Network) Validate() error {
	if len(n.Routes) == 0 {
		return errors.New("network has no routes")
	}
	seen := make(map[string]struct{}, len(n.Routes))
	for i := range n.Routes {
		r := &n.Routes[i]
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("route %d: empty id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("route %s: duplicate id", r.ID)
		}
		seen[r.ID] = struct{}{}
		if len(r.Path) < 2 {
			return fmt.Errorf("route %s: need at least 2 waypoints, got %d", r.ID, len(r.Path))
		}
		if len(r.Stops) != len(r.Path) {
			return fmt.Errorf("route %s: %d stop names for %d waypoints", r.ID, len(r.Stops), len(r.Path))
		}
		for j, p := range r.Path {
			if err := checkPoint(p); err != nil {
				return fmt.Errorf("route %s waypoint %d: %w", r.ID, j, err)
			}
		}
	}
	if strings.TrimSpace(n.Pickup.Name) == "" {
		return errors.New("pickup stop name is empty")
	}
	if strings.TrimSpace(n.Destination.Name) == "" {
		return errors.New("destination stop name is empty")
	}
	if err := checkPoint(n.Pickup.Location); err != nil {
		return fmt.Errorf("pickup: %w", err)
	}
	if err := checkPoint(n.Destination.Location); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	return nil
}

func checkPoint(p Point) error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lon)
	}
	return nil
}

// ResolveStop finds the location of a named stop on the first route that lists it.
func ResolveStop(routes []Route, name string) (Stop, bool) {
	for i := range routes {
		if idx := routes[i].StopIndex(name); idx >= 0 {
			return Stop{Name: name, Location: routes[i].Path[idx]}, true
		}
	}
	return Stop{}, false
}

// DefaultNetwork returns the built-in Kolkata demo: three routes, a passenger
// waiting at Park Street and heading for Central Kolkata (BBD Bagh).
func DefaultNetwork() Network {
	return Network{
		Routes: []Route{
			{
				ID:    "DN18",
				Name:  "DN18",
				Color: "#e74c3c",
				Path: []Point{
					{22.5958, 88.2636},
					{22.5448, 88.3519},
					{22.5626, 88.3633},
					{22.5896, 88.4030},
				},
				Stops: []string{"Howrah Station", "Park Street", "Central Kolkata", "Salt Lake"},
			},
			{
				ID:    "L238",
				Name:  "L238",
				Color: "#3498db",
				Path: []Point{
					{22.5697, 88.3697},
					{22.5448, 88.3519},
					{22.5626, 88.3633},
					{22.5323, 88.3636},
					{22.4707, 88.3962},
				},
				Stops: []string{"Sealdah", "Park Street", "Central Kolkata", "Ballygunge", "Garia"},
			},
			{
				ID:    "S15",
				Name:  "S15",
				Color: "#2ecc71",
				Path: []Point{
					{22.5675, 88.3548},
					{22.5626, 88.3633},
					{22.5957, 88.4044},
					{22.6540, 88.4473},
				},
				Stops: []string{"Esplanade", "Central", "Bidhannagar", "Airport"},
			},
		},
		Pickup:      Stop{Name: "Park Street", Location: Point{22.5448, 88.3519}},
		Destination: Stop{Name: "Central Kolkata", Location: Point{22.5626, 88.3633}},
	}
}
