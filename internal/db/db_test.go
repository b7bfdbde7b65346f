package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-simulator/internal/transit"
)

func TestBuildRoutes(t *testing.T) {
	rows := []waypointRow{
		{RouteID: "DN18", Name: "DN18", Color: "#e74c3c", Sequence: 1, Lat: 22.5958, Lon: 88.2636, StopName: "Howrah Station"},
		{RouteID: "DN18", Name: "DN18", Color: "#e74c3c", Sequence: 2, Lat: 22.5448, Lon: 88.3519, StopName: "Park Street"},
		{RouteID: "S15", Name: "S15", Sequence: 1, Lat: 22.5675, Lon: 88.3548, StopName: "Esplanade"},
		{RouteID: "S15", Name: "S15", Sequence: 2, Lat: 22.5626, Lon: 88.3633},
		{RouteID: "S15", Name: "S15", Sequence: 3, Lat: 22.5957, Lon: 88.4044, StopName: "Bidhannagar"},
	}

	routes := buildRoutes(rows)
	require.Len(t, routes, 2)

	dn18 := routes[0]
	assert.Equal(t, "DN18", dn18.ID)
	assert.Equal(t, "#e74c3c", dn18.Color)
	assert.Equal(t, []transit.Point{{Lat: 22.5958, Lon: 88.2636}, {Lat: 22.5448, Lon: 88.3519}}, dn18.Path)
	assert.Equal(t, []string{"Howrah Station", "Park Street"}, dn18.Stops)

	s15 := routes[1]
	assert.Len(t, s15.Path, 3)
	assert.Equal(t, []string{"Esplanade", "S15 #2", "Bidhannagar"}, s15.Stops)
}

func TestBuildRoutes_ValidatesAsNetwork(t *testing.T) {
	rows := []waypointRow{
		{RouteID: "R", Sequence: 1, Lat: 0, Lon: 0, StopName: "A"},
		{RouteID: "R", Sequence: 2, Lat: 0, Lon: 1, StopName: "B"},
	}
	n := transit.Network{
		Routes:      buildRoutes(rows),
		Pickup:      transit.Stop{Name: "A"},
		Destination: transit.Stop{Name: "B", Location: transit.Point{Lon: 1}},
	}
	assert.NoError(t, n.Validate())
}

func TestBuildRoutes_Empty(t *testing.T) {
	assert.Empty(t, buildRoutes(nil))
}
