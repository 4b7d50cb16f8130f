package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thunderbird/internal/alert"
	"thunderbird/internal/checkin"
	"thunderbird/internal/config"
	"thunderbird/internal/db"
	"thunderbird/internal/dispatch"
	"thunderbird/internal/forecast"
	"thunderbird/internal/observability"
	"thunderbird/internal/route"
	"thunderbird/internal/server"
	"thunderbird/internal/sms"
	"thunderbird/internal/weather"
	"thunderbird/internal/zone"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config, *slog.Logger) (*pgxpool.Pool, error)
	connectRedis    func(config.Config, *slog.Logger) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	pg, err := deps.connectPostgres(cfg, logger)
	if err != nil {
		logger.Warn("postgres connection failed, route store unavailable", "error", err)
	}

	rdb := deps.connectRedis(cfg, logger)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		logger.Error("server exited", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var newMetrics = observability.NewMetrics

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run wires the pipeline, starts the scheduler and the HTTP server, and
// waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	metrics := newMetrics()
	clock := clockwork.NewRealClock()

	var gateway dispatch.Gateway
	if cfg.GatewayURL != "" {
		gateway = dispatch.NewHTTPGateway(cfg.GatewayURL, cfg.GatewaySecret, cfg.ProviderTimeout, logger)
	} else {
		logger.Info("no gateway configured, logging outbound messages")
		gateway = &dispatch.LogGateway{Log: logger}
	}

	providers := []weather.Provider{
		weather.NewBOM(cfg.BOMBaseURL, cfg.ProviderTimeout, cfg.ModelElevation),
		weather.NewNWS(cfg.NWSBaseURL, cfg.ProviderTimeout),
		weather.NewOpenMeteo(cfg.OpenMeteoBaseURL, cfg.ProviderTimeout),
	}
	cache := weather.NewForecastCache(rdb, cfg.ForecastTTL)
	router := weather.NewRouter(providers, "openmeteo", cache, clock, metrics, logger)

	routes := route.NewService(pg)
	checkins := checkin.NewService(pg, dispatch.NotifierFromGateway(gateway), logger)
	hub := alert.NewHub(rdb, logger)

	dispatcher := dispatch.New(dispatch.Deps{
		Routes:    routes,
		Checkins:  checkins,
		Resolver:  zone.NewResolver(cfg.ZoneCellLevel),
		Weather:   router,
		Formatter: sms.NewFormatter(cfg.SMSSegmentChars, cfg.SMSMaxSegments),
		Gateway:   gateway,
		Redis:     rdb,
		Hub:       hub,
		Clock:     clock,
		Metrics:   metrics,
		Log:       logger,

		ModelElevation: cfg.ModelElevation,
		AlertMinRating: forecast.Rating(cfg.AlertMinRating),
		SentTTL:        cfg.ForecastTTL,
		WorkerLimit:    cfg.FetchWorkers,
	})

	scheduler, err := dispatch.NewScheduler(dispatcher, clock, cfg.PushTimeList(), cfg.PollInterval, logger)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := scheduler.Run(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error("scheduler exited", "error", err)
		}
	}()

	srv := server.NewServer(cfg, dispatcher)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
