package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"thunderbird/internal/alert"
	"thunderbird/internal/checkin"
	"thunderbird/internal/command"
	"thunderbird/internal/forecast"
	"thunderbird/internal/observability"
	"thunderbird/internal/route"
	"thunderbird/internal/shared/geo"
	"thunderbird/internal/sms"
	"thunderbird/internal/weather"
	"thunderbird/internal/zone"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// nearbyWaypointKm bounds how far a GPS cast can borrow elevation and
// terrain type from a route waypoint.
const nearbyWaypointKm = 15.0

// Deps wires a Dispatcher. Everything external to the pipeline (gateway,
// stores, clock) arrives here so tests can substitute fakes.
type Deps struct {
	Routes    *route.Service
	Checkins  *checkin.Service
	Resolver  *zone.Resolver
	Weather   *weather.Router
	Formatter *sms.Formatter
	Gateway   Gateway
	Redis     *redis.Client
	Hub       *alert.Hub
	Clock     clockwork.Clock
	Metrics   *observability.Metrics
	Log       *slog.Logger

	ModelElevation float64
	AlertMinRating forecast.Rating
	SentTTL        time.Duration
	WorkerLimit    int
}

// Dispatcher orchestrates the pipeline: inbound commands synchronously,
// scheduled pushes and warning polls through the Scheduler.
type Dispatcher struct {
	deps Deps
	log  *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{} // route IDs with a send in progress
	lastSent map[string]sentEntry
}

type sentEntry struct {
	hash    string
	expires time.Time
}

func New(deps Deps) *Dispatcher {
	if deps.WorkerLimit <= 0 {
		deps.WorkerLimit = 8
	}
	return &Dispatcher{
		deps:     deps,
		log:      deps.Log.With("component", "dispatcher"),
		inflight: map[string]struct{}{},
		lastSent: map[string]sentEntry{},
	}
}

// NotifierFromGateway adapts the gateway to the check-in service's
// single-text notifier.
func NotifierFromGateway(g Gateway) checkin.Notifier {
	return gatewayNotifier{g}
}

type gatewayNotifier struct {
	g Gateway
}

func (n gatewayNotifier) Notify(ctx context.Context, toPhone, text string) error {
	_, err := n.g.Send(ctx, toPhone, []string{text})
	return err
}

// HandleInbound parses one inbound SMS and returns the reply segments. It
// runs synchronously and never returns a user-visible error: failures
// become corrective reply text.
func (d *Dispatcher) HandleInbound(ctx context.Context, fromPhone, body string) ([]string, error) {
	r, err := d.deps.Routes.RouteByPhone(ctx, fromPhone)
	if err != nil {
		d.log.Info("inbound from unknown number", "phone", fromPhone)
		return d.reply(sms.NoRouteText)
	}

	cmd := command.Parse(body, r.Codes())
	d.deps.Metrics.CommandsParsed.WithLabelValues(commandLabel(cmd)).Inc()

	switch c := cmd.(type) {
	case command.CastRequest:
		return d.handleCast(ctx, r, fromPhone, c)
	case command.Checkin:
		return d.handleCheckin(ctx, r, c)
	case command.Delay:
		newEnd, err := d.deps.Routes.ExtendTripEnd(ctx, r.ID, r.EndDate.Add(24*time.Hour))
		if errors.Is(err, route.ErrEndDateNotAdvanced) {
			return d.reply(sms.CannotExtendText)
		}
		if err != nil {
			d.log.Error("extend trip failed", "route_id", r.ID, "error", err)
			return d.reply(sms.UnavailableText)
		}
		return d.reply(sms.DelayReply(newEnd))
	case command.Done:
		if err := d.deps.Routes.MarkDone(ctx, r.ID); err != nil {
			d.log.Error("mark done failed", "route_id", r.ID, "error", err)
			return d.reply(sms.UnavailableText)
		}
		return d.reply(sms.DoneText)
	case command.SetUnits:
		if err := d.deps.Routes.SetUnits(ctx, r.ID, c.System); err != nil {
			d.log.Error("set units failed", "route_id", r.ID, "error", err)
			return d.reply(sms.UnavailableText)
		}
		return d.reply(sms.UnitsReply(c.System))
	case command.Help, command.Unknown:
		return d.reply(sms.HelpText)
	}
	return d.reply(sms.HelpText)
}

func (d *Dispatcher) handleCast(ctx context.Context, r route.Route, fromPhone string, c command.CastRequest) ([]string, error) {
	var (
		wp route.Waypoint
		z  zone.Zone
	)
	switch {
	case c.HasCoords:
		resolved, err := d.deps.Resolver.ResolveForPhone(c.Lat, c.Lon, fromPhone)
		var verr *zone.ValidationError
		if errors.As(err, &verr) {
			return d.reply(sms.InvalidCoordsText)
		}
		if err != nil {
			return d.reply(sms.UnavailableText)
		}
		z = resolved
		wp = d.pseudoWaypoint(r, c.Lat, c.Lon)
	case c.WaypointCode != "":
		found, ok := r.WaypointByCode(c.WaypointCode)
		if !ok {
			return d.reply(sms.UnknownWaypointReply(c.WaypointCode))
		}
		wp = found
		resolved, err := d.deps.Resolver.Resolve(wp.Lat, wp.Lon)
		if err != nil {
			return d.reply(sms.UnavailableText)
		}
		z = resolved
	default:
		next, ok := d.nextWaypoint(ctx, r)
		if !ok {
			return d.reply(sms.NoRouteText)
		}
		wp = next
		resolved, err := d.deps.Resolver.Resolve(wp.Lat, wp.Lon)
		if err != nil {
			return d.reply(sms.UnavailableText)
		}
		z = resolved
	}

	segments, err := d.buildForecastSegments(ctx, r, wp, z, c.Horizon)
	if err != nil {
		// On-demand requests surface degraded service immediately.
		d.log.Warn("cast failed", "route_id", r.ID, "waypoint", wp.Code, "error", err)
		return d.reply(sms.UnavailableText)
	}
	return segments, nil
}

func (d *Dispatcher) handleCheckin(ctx context.Context, r route.Route, c command.Checkin) ([]string, error) {
	wp, ok := r.WaypointByCode(c.WaypointCode)
	if !ok {
		return d.reply(sms.UnknownWaypointReply(c.WaypointCode))
	}
	contacts, err := d.deps.Routes.Contacts(ctx, r.ID)
	if err != nil {
		d.log.Error("contacts lookup failed", "route_id", r.ID, "error", err)
		contacts = nil
	}
	if _, err := d.deps.Checkins.Record(ctx, r, wp, contacts, d.deps.Clock.Now().UTC()); err != nil {
		d.log.Error("checkin record failed", "route_id", r.ID, "error", err)
		return d.reply(sms.UnavailableText)
	}
	return d.reply(sms.CheckinReply(wp.Code, wp.Name))
}

// buildForecastSegments runs resolve → fetch → adjust → rate → assemble →
// format for one waypoint.
func (d *Dispatcher) buildForecastSegments(ctx context.Context, r route.Route, wp route.Waypoint, z zone.Zone, horizon forecast.Horizon) ([]string, error) {
	raw, err := d.deps.Weather.FetchForecast(ctx, z, wp.Lat, wp.Lon, horizon.Days())
	if err != nil {
		return nil, err
	}
	adjusted := forecast.AdjustElevation(raw, wp.ElevationM, d.deps.ModelElevation)
	assembled := forecast.Assemble(adjusted, wp.Code, wp.Name, wp.ElevationM, wp.Type, horizon, d.deps.AlertMinRating, d.deps.Clock.Now().UTC())

	units := r.Units
	if units == "" {
		units = sms.UnitsMetric
	}
	return d.deps.Formatter.FormatForecast(assembled, units)
}

// pseudoWaypoint represents an ad-hoc GPS position, borrowing elevation and
// terrain type from the nearest route waypoint when one is close enough.
func (d *Dispatcher) pseudoWaypoint(r route.Route, lat, lon float64) route.Waypoint {
	wp := route.Waypoint{
		RouteID: r.ID,
		Code:    "GPSPT",
		Name:    "your position",
		Type:    "trailhead",
		Lat:     lat,
		Lon:     lon,
	}
	bestKm := nearbyWaypointKm
	for _, candidate := range r.Waypoints {
		if dKm := geo.HaversineKm(lat, lon, candidate.Lat, candidate.Lon); dKm < bestKm {
			bestKm = dKm
			wp.ElevationM = candidate.ElevationM
			wp.Type = candidate.Type
		}
	}
	return wp
}

// nextWaypoint picks the waypoint after the hiker's latest check-in, or the
// first one before any check-in.
func (d *Dispatcher) nextWaypoint(ctx context.Context, r route.Route) (route.Waypoint, bool) {
	if len(r.Waypoints) == 0 {
		return route.Waypoint{}, false
	}
	code, ok := d.deps.Checkins.LastCode(ctx, r.ID)
	if !ok {
		return r.Waypoints[0], true
	}
	for i, wp := range r.Waypoints {
		if wp.Code == code && i+1 < len(r.Waypoints) {
			return r.Waypoints[i+1], true
		}
	}
	return r.Waypoints[len(r.Waypoints)-1], true
}

// PushRun sends the scheduled forecast to every active route. Failures are
// isolated per route: one provider outage never halts the rest of the run.
func (d *Dispatcher) PushRun(ctx context.Context) error {
	start := d.deps.Clock.Now()
	defer func() {
		d.deps.Metrics.PushDuration.Observe(d.deps.Clock.Since(start).Seconds())
	}()

	routes, err := d.deps.Routes.ActiveRoutesDueForPush(ctx, d.deps.Clock.Now().UTC())
	if err != nil {
		return err
	}
	d.log.Info("push run", "routes", len(routes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.deps.WorkerLimit)
	for _, r := range routes {
		r := r
		g.Go(func() error {
			if err := d.sendRoutePush(ctx, r); err != nil {
				d.log.Warn("push failed", "route_id", r.ID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) sendRoutePush(ctx context.Context, r route.Route) error {
	if !d.acquire(r.ID) {
		// A warning send for the same route is in progress; skip rather
		// than risk a duplicate concurrent send.
		return nil
	}
	defer d.release(r.ID)

	// Re-check DONE between scheduling and execution: a trip ended in the
	// gap gets its pending push dropped silently.
	if done, err := d.deps.Routes.IsDone(ctx, r.ID); err != nil || done {
		return err
	}

	wp, ok := d.nextWaypoint(ctx, r)
	if !ok {
		return nil
	}
	z, err := d.deps.Resolver.Resolve(wp.Lat, wp.Lon)
	if err != nil {
		return err
	}
	segments, err := d.buildForecastSegments(ctx, r, wp, z, forecast.Horizon24h)
	if err != nil {
		// Scheduled pushes skip quietly; alert fatigue is worse than a
		// missed twice-daily forecast.
		return err
	}

	key := "sent:" + r.ID + ":push"
	hash := payloadHash(segments)
	if d.alreadySent(ctx, key, hash) {
		d.deps.Metrics.SendsSuppressed.Inc()
		return nil
	}
	if _, err := d.deps.Gateway.Send(ctx, r.Phone, segments); err != nil {
		// Nothing recorded: the next run retries this payload.
		return err
	}
	d.markSent(ctx, key, hash)
	d.deps.Metrics.MessagesSent.Inc()
	return nil
}

// WarningRun polls each active zone for severe-weather warnings and
// publishes hits to the alert hub. Delivery happens in Run's hub listener.
func (d *Dispatcher) WarningRun(ctx context.Context) error {
	routes, err := d.deps.Routes.ActiveRoutesDueForPush(ctx, d.deps.Clock.Now().UTC())
	if err != nil {
		return err
	}

	type sample struct {
		z        zone.Zone
		lat, lon float64
	}
	zones := map[string]sample{}
	for _, r := range routes {
		for _, wp := range r.Waypoints {
			z, err := d.deps.Resolver.Resolve(wp.Lat, wp.Lon)
			if err != nil {
				continue
			}
			if _, seen := zones[z.ID]; !seen {
				zones[z.ID] = sample{z: z, lat: wp.Lat, lon: wp.Lon}
			}
		}
	}

	for id, s := range zones {
		warnings, err := d.deps.Weather.FetchWarnings(ctx, s.z, s.lat, s.lon)
		if err != nil {
			d.log.Warn("warning poll failed", "zone", id, "error", err)
			continue
		}
		for _, w := range warnings {
			w.Zone = id
			d.deps.Hub.Publish(id, w)
		}
	}
	return nil
}

// Run consumes warnings from the alert hub until ctx is cancelled. Both
// locally-polled and cross-instance warnings arrive here.
func (d *Dispatcher) Run(ctx context.Context) error {
	client := d.deps.Hub.Register(alert.AllZones)
	defer d.deps.Hub.Unregister(client)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w := <-client.Recv:
			d.handleWarning(ctx, w)
		}
	}
}

func (d *Dispatcher) handleWarning(ctx context.Context, w weather.Warning) {
	routes, err := d.deps.Routes.ActiveRoutesDueForPush(ctx, d.deps.Clock.Now().UTC())
	if err != nil {
		d.log.Error("warning delivery: route load failed", "error", err)
		return
	}

	for _, r := range routes {
		if !routeInZone(r, w.Zone) {
			continue
		}
		// Acquire first: a warning that loses the race with an in-flight
		// push must stay eligible for the next poll, not be marked sent.
		if !d.acquire(r.ID) {
			continue
		}
		key := "sent:" + r.ID + ":warn"
		hash := payloadHash([]string{w.Headline})
		if d.alreadySent(ctx, key, hash) {
			d.release(r.ID)
			continue
		}
		segments, err := d.deps.Formatter.Reply(sms.WarningNotice(w.Headline))
		if err == nil {
			if _, err := d.deps.Gateway.Send(ctx, r.Phone, segments); err != nil {
				d.log.Warn("warning send failed", "route_id", r.ID, "error", err)
			} else {
				d.markSent(ctx, key, hash)
				d.deps.Metrics.MessagesSent.Inc()
			}
		}
		d.release(r.ID)
	}
}

func routeInZone(r route.Route, zoneID string) bool {
	for _, wp := range r.Waypoints {
		if wp.ZoneID == zoneID {
			return true
		}
	}
	return false
}

func (d *Dispatcher) reply(text string) ([]string, error) {
	return d.deps.Formatter.Reply(text)
}

func (d *Dispatcher) acquire(routeID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[routeID]; busy {
		return false
	}
	d.inflight[routeID] = struct{}{}
	return true
}

func (d *Dispatcher) release(routeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, routeID)
}

// alreadySent reports whether this payload hash was delivered for the key
// within SentTTL. Redis makes the memory shared across instances; without
// redis a local map serves a single instance.
func (d *Dispatcher) alreadySent(ctx context.Context, key, hash string) bool {
	if d.deps.Redis != nil {
		prev, err := d.deps.Redis.Get(ctx, key).Result()
		return err == nil && prev == hash
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.lastSent[key]
	return ok && e.hash == hash && d.deps.Clock.Now().Before(e.expires)
}

// markSent records a payload hash after the gateway accepted it. Recording
// before the send would let a transient gateway failure suppress its own
// retry for the whole TTL.
func (d *Dispatcher) markSent(ctx context.Context, key, hash string) {
	if d.deps.Redis != nil {
		d.deps.Redis.Set(ctx, key, hash, d.deps.SentTTL)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSent[key] = sentEntry{hash: hash, expires: d.deps.Clock.Now().Add(d.deps.SentTTL)}
}

func payloadHash(segments []string) string {
	sum := sha256.Sum256([]byte(strings.Join(segments, "\x1e")))
	return hex.EncodeToString(sum[:])
}

func commandLabel(cmd command.Command) string {
	switch cmd.(type) {
	case command.CastRequest:
		return "cast"
	case command.Checkin:
		return "checkin"
	case command.Delay:
		return "delay"
	case command.Done:
		return "done"
	case command.SetUnits:
		return "units"
	case command.Help:
		return "help"
	default:
		return "unknown"
	}
}
