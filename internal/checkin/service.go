package checkin

import (
	"context"
	"log/slog"
	"time"

	"thunderbird/internal/db"
	"thunderbird/internal/route"
	"thunderbird/internal/sms"

	"github.com/google/uuid"
)

// Notifier is the slice of the SMS gateway the check-in service needs.
type Notifier interface {
	Notify(ctx context.Context, toPhone string, text string) error
}

// Checkin is one recorded waypoint check-in.
type Checkin struct {
	ID         string    `json:"id"`
	RouteID    string    `json:"route_id"`
	Code       string    `json:"code"`
	ReceivedAt time.Time `json:"received_at"`
}

type Service struct {
	db     db.Querier
	notify Notifier
	log    *slog.Logger
}

func NewService(db db.Querier, notify Notifier, log *slog.Logger) *Service {
	return &Service{db: db, notify: notify, log: log.With("component", "checkin")}
}

// Record persists a check-in and notifies the route's SafeCheck contacts.
// Contact notification is best-effort: a dead contact number must never
// fail the hiker's own confirmation.
func (s *Service) Record(ctx context.Context, r route.Route, wp route.Waypoint, contacts []route.SafeCheckContact, now time.Time) (Checkin, error) {
	c := Checkin{
		ID:         uuid.NewString(),
		RouteID:    r.ID,
		Code:       wp.Code,
		ReceivedAt: now,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO checkins (id, route_id, code, received_at)
		VALUES ($1,$2,$3,$4)
	`, c.ID, c.RouteID, c.Code, c.ReceivedAt)
	if err != nil {
		return Checkin{}, err
	}

	for _, contact := range contacts {
		notice := sms.CheckinNotice(r.Name, wp.Code, wp.Name, now)
		if err := s.notify.Notify(ctx, contact.Phone, notice); err != nil {
			s.log.Warn("safecheck notify failed", "route_id", r.ID, "contact", contact.DisplayName, "error", err)
		}
	}
	return c, nil
}

// LastCode returns the code of the route's most recent check-in, or false
// when the hiker has not checked in yet.
func (s *Service) LastCode(ctx context.Context, routeID string) (string, bool) {
	var code string
	err := s.db.QueryRow(ctx, `
		SELECT code FROM checkins
		WHERE route_id=$1
		ORDER BY received_at DESC
		LIMIT 1
	`, routeID).Scan(&code)
	if err != nil {
		return "", false
	}
	return code, true
}
