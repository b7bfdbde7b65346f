package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bus-simulator/internal/transit"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// waypointRow is one joined row of bus_routes x bus_route_waypoints.
type waypointRow struct {
	RouteID  string
	Name     string
	Color    string
	Sequence int
	Lat      float64
	Lon      float64
	StopName string
}

// FetchRoutes loads every route of a route set (all routes when routeSet is
// empty), with waypoints ordered by sequence.
func FetchRoutes(ctx context.Context, db *sql.DB, routeSet string) ([]transit.Route, error) {
	// Waypoints carry either plain lat/lon columns or a PostGIS geography column "loc".
	latlonExists, err := hasColumns(ctx, db, "public", "bus_route_waypoints", "lat", "lon")
	if err != nil {
		return nil, fmt.Errorf("introspect waypoint columns: %w", err)
	}
	latExpr, lonExpr := "w.lat", "w.lon"
	if !latlonExists["lat"] || !latlonExists["lon"] {
		locExists, err := hasColumns(ctx, db, "public", "bus_route_waypoints", "loc")
		if err != nil {
			return nil, fmt.Errorf("introspect waypoint loc: %w", err)
		}
		if !locExists["loc"] {
			return nil, fmt.Errorf("bus_route_waypoints missing expected columns (lat/lon or loc)")
		}
		latExpr, lonExpr = "ST_Y(w.loc::geometry)", "ST_X(w.loc::geometry)"
	}
	q := fmt.Sprintf(`
SELECT r.route_id,
       COALESCE(r.name, r.route_id),
       COALESCE(r.color, ''),
       w.seq,
       %s AS lat,
       %s AS lon,
       COALESCE(w.stop_name, '')
FROM bus_routes r
JOIN bus_route_waypoints w ON w.route_id = r.route_id
WHERE ($1 = '' OR r.route_set = $1)
ORDER BY r.route_id, w.seq`, latExpr, lonExpr)

	rows, err := db.QueryContext(ctx, q, routeSet)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var wps []waypointRow
	for rows.Next() {
		var w waypointRow
		if err := rows.Scan(&w.RouteID, &w.Name, &w.Color, &w.Sequence, &w.Lat, &w.Lon, &w.StopName); err != nil {
			return nil, err
		}
		wps = append(wps, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buildRoutes(wps), nil
}

// buildRoutes groups rows (ordered by route, then sequence) into routes. A
// waypoint without a stop name gets a positional placeholder so Stops stays
// aligned with Path.
func buildRoutes(rows []waypointRow) []transit.Route {
	var routes []transit.Route
	for _, w := range rows {
		if len(routes) == 0 || routes[len(routes)-1].ID != w.RouteID {
			routes = append(routes, transit.Route{ID: w.RouteID, Name: w.Name, Color: w.Color})
		}
		r := &routes[len(routes)-1]
		name := w.StopName
		if name == "" {
			name = fmt.Sprintf("%s #%d", r.ID, len(r.Path)+1)
		}
		r.Path = append(r.Path, transit.Point{Lat: w.Lat, Lon: w.Lon})
		r.Stops = append(r.Stops, name)
	}
	return routes
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
