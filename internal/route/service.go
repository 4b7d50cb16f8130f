package route

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"thunderbird/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrEndDateNotAdvanced = errors.New("route: end date can only move forward")

var codeRe = regexp.MustCompile(`^[A-Z0-9]{5}$`)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreateRoute(ctx context.Context, input Route) (Route, error) {
	if input.Units == "" {
		input.Units = "metric"
	}
	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO routes (id, phone, name, units, start_date, end_date, done)
		VALUES ($1,$2,$3,$4,$5,$6,false)
		RETURNING created_at
	`, input.ID, input.Phone, input.Name, input.Units, input.StartDate, input.EndDate)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Route{}, err
	}
	return input, nil
}

func (s *Service) AddWaypoint(ctx context.Context, wp Waypoint) (Waypoint, error) {
	wp.Code = strings.ToUpper(strings.TrimSpace(wp.Code))
	if !codeRe.MatchString(wp.Code) {
		return Waypoint{}, errors.New("route: waypoint code must be 5 uppercase alphanumerics")
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO waypoints (route_id, code, name, type, lat, lon, elevation_m, zone_id, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, wp.RouteID, wp.Code, wp.Name, wp.Type, wp.Lat, wp.Lon, wp.ElevationM, wp.ZoneID, wp.Position)
	if err != nil {
		return Waypoint{}, err
	}
	return wp, nil
}

// RouteByPhone loads the newest non-done route for a phone number together
// with its waypoints.
func (s *Service) RouteByPhone(ctx context.Context, phone string) (Route, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, phone, name, units, start_date, end_date, done, created_at
		FROM routes
		WHERE phone=$1 AND done=false
		ORDER BY created_at DESC
		LIMIT 1
	`, phone)
	var r Route
	if err := row.Scan(&r.ID, &r.Phone, &r.Name, &r.Units, &r.StartDate, &r.EndDate, &r.Done, &r.CreatedAt); err != nil {
		return Route{}, err
	}
	if err := s.loadWaypoints(ctx, &r); err != nil {
		return Route{}, err
	}
	return r, nil
}

// ActiveRoutesDueForPush returns every route whose service window covers
// now, waypoints included. The scheduler decides whether this run is a push
// time; the store only answers who is active.
func (s *Service) ActiveRoutesDueForPush(ctx context.Context, now time.Time) ([]Route, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, phone, name, units, start_date, end_date, done, created_at
		FROM routes
		WHERE done=false AND start_date<=$1 AND end_date>=$1
		ORDER BY created_at
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		var r Route
		if err := rows.Scan(&r.ID, &r.Phone, &r.Name, &r.Units, &r.StartDate, &r.EndDate, &r.Done, &r.CreatedAt); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	for i := range routes {
		if err := s.loadWaypoints(ctx, &routes[i]); err != nil {
			return nil, err
		}
	}
	return routes, nil
}

// ExtendTripEnd moves the end date forward. Backwards moves and ended trips
// are rejected, so retried DELAY commands stay idempotent.
func (s *Service) ExtendTripEnd(ctx context.Context, routeID string, newEnd time.Time) (time.Time, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE routes SET end_date=$2
		WHERE id=$1 AND done=false AND end_date<$2
		RETURNING end_date
	`, routeID, newEnd)
	var end time.Time
	if err := row.Scan(&end); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrEndDateNotAdvanced
		}
		return time.Time{}, err
	}
	return end, nil
}

func (s *Service) MarkDone(ctx context.Context, routeID string) error {
	_, err := s.db.Exec(ctx, `UPDATE routes SET done=true WHERE id=$1`, routeID)
	return err
}

// IsDone reports whether a route has been ended, checked again just before
// sending so pushes scheduled before a DONE are dropped.
func (s *Service) IsDone(ctx context.Context, routeID string) (bool, error) {
	var done bool
	err := s.db.QueryRow(ctx, `SELECT done FROM routes WHERE id=$1`, routeID).Scan(&done)
	return done, err
}

func (s *Service) SetUnits(ctx context.Context, routeID, units string) error {
	_, err := s.db.Exec(ctx, `UPDATE routes SET units=$2 WHERE id=$1`, routeID, units)
	return err
}

// Contacts returns the route's SafeCheck contacts, capped at five.
func (s *Service) Contacts(ctx context.Context, routeID string) ([]SafeCheckContact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT route_id, phone, display_name
		FROM safecheck_contacts
		WHERE route_id=$1
		ORDER BY display_name
		LIMIT 5
	`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []SafeCheckContact
	for rows.Next() {
		var c SafeCheckContact
		if err := rows.Scan(&c.RouteID, &c.Phone, &c.DisplayName); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func (s *Service) loadWaypoints(ctx context.Context, r *Route) error {
	rows, err := s.db.Query(ctx, `
		SELECT route_id, code, name, type, lat, lon, elevation_m, zone_id, position
		FROM waypoints
		WHERE route_id=$1
		ORDER BY position
	`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var wp Waypoint
		if err := rows.Scan(&wp.RouteID, &wp.Code, &wp.Name, &wp.Type, &wp.Lat, &wp.Lon, &wp.ElevationM, &wp.ZoneID, &wp.Position); err != nil {
			return err
		}
		r.Waypoints = append(r.Waypoints, wp)
	}
	return nil
}
