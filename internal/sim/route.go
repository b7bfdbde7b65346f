package sim

import (
	"math"

	"bus-simulator/internal/transit"
)

// DefaultStepSize is the fraction of a segment covered per tick (~67 ticks per segment).
const DefaultStepSize = 0.015

const earthRadiusKm = 6371.0

// Advance moves the bus one tick along its route, bouncing at both ends.
//
// Progress is measured along the active leg in the direction of travel, so it
// always grows: forward the leg runs Path[i] -> Path[i+1], on the way back it
// runs Path[i] -> Path[i-1]. Arriving at a leg end moves SegmentIndex by
// Direction and restarts progress at 0.
func Advance(r *transit.Route, st *transit.BusState, step float64) {
	last := r.LastIndex()
	if st.Direction != transit.Reverse {
		st.Direction = transit.Forward
	}
	st.Progress += step
	if st.Progress >= 1 {
		st.Progress = 0
		st.SegmentIndex += st.Direction
	}
	switch {
	case st.SegmentIndex >= last:
		st.SegmentIndex = last
		st.Direction = transit.Reverse
	case st.SegmentIndex <= 0:
		st.SegmentIndex = 0
		st.Direction = transit.Forward
	}
}

// Position interpolates the bus position linearly per axis. Forward states at
// or past the final waypoint are clamped to it.
//
// A Reverse state at SegmentIndex == last is not clamped once Progress > 0:
// Advance flips Direction on arrival at the last waypoint and the bus is then
// already travelling back toward Path[last-1]. Only {last, 0, Reverse} sits
// exactly on the final waypoint.
func Position(r *transit.Route, st transit.BusState) transit.Point {
	last := r.LastIndex()
	i := st.SegmentIndex
	if i < 0 {
		return r.Path[0]
	}
	if st.Direction == transit.Reverse {
		if i == 0 {
			return r.Path[0]
		}
		if i > last {
			return r.Path[last]
		}
		return lerp(r.Path[i], r.Path[i-1], st.Progress)
	}
	if i >= last {
		return r.Path[last]
	}
	return lerp(r.Path[i], r.Path[i+1], st.Progress)
}

func lerp(a, b transit.Point, f float64) transit.Point {
	return transit.Point{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
	}
}

// NearestStop names whichever end of the active leg the bus is closer to.
func NearestStop(r *transit.Route, st transit.BusState) string {
	last := r.LastIndex()
	i := min(max(st.SegmentIndex, 0), last)
	next := i + 1
	if st.Direction == transit.Reverse {
		next = i - 1
	}
	if st.Progress >= 0.5 && next >= 0 && next <= last {
		i = next
	}
	if i >= len(r.Stops) {
		i = len(r.Stops) - 1
	}
	return r.Stops[i]
}

// DistanceKm is the haversine great-circle distance in kilometres.
func DistanceKm(a, b transit.Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// bearingDeg is the initial compass bearing from a to b.
func bearingDeg(a, b transit.Point) float64 {
	y := math.Sin((b.Lon-a.Lon)*math.Pi/180.0) * math.Cos(b.Lat*math.Pi/180.0)
	x := math.Cos(a.Lat*math.Pi/180.0)*math.Sin(b.Lat*math.Pi/180.0) - math.Sin(a.Lat*math.Pi/180.0)*math.Cos(b.Lat*math.Pi/180.0)*math.Cos((b.Lon-a.Lon)*math.Pi/180.0)
	brng := math.Atan2(y, x) * 180.0 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}

// Heading returns the bearing of the active leg in the direction of travel.
func Heading(r *transit.Route, st transit.BusState) float64 {
	last := r.LastIndex()
	i := min(max(st.SegmentIndex, 0), last)
	if st.Direction == transit.Reverse {
		if i == 0 {
			return bearingDeg(r.Path[1], r.Path[0])
		}
		return bearingDeg(r.Path[i], r.Path[i-1])
	}
	if i == last {
		return bearingDeg(r.Path[last-1], r.Path[last])
	}
	return bearingDeg(r.Path[i], r.Path[i+1])
}
