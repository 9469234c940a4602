package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/BearBump/CrewTrack/config"
	"github.com/BearBump/CrewTrack/internal/api/httpapi"
	"github.com/BearBump/CrewTrack/internal/api/tracking_api"
	"github.com/BearBump/CrewTrack/internal/auth"
	"github.com/BearBump/CrewTrack/internal/broker/kafka"
	"github.com/BearBump/CrewTrack/internal/cache/rediscache"
	"github.com/BearBump/CrewTrack/internal/geo"
	"github.com/BearBump/CrewTrack/internal/notify"
	"github.com/BearBump/CrewTrack/internal/services/checkpoints"
	"github.com/BearBump/CrewTrack/internal/services/jobs"
	"github.com/BearBump/CrewTrack/internal/services/live"
	"github.com/BearBump/CrewTrack/internal/services/locations"
	"github.com/BearBump/CrewTrack/internal/services/signoff"
	"github.com/BearBump/CrewTrack/internal/storage/artifacts"
	"github.com/BearBump/CrewTrack/internal/storage/pgtracking"
	"github.com/BearBump/CrewTrack/internal/telemetry"
)

const (
	defaultGRPCAddr         = ":50051"
	defaultHTTPAddr         = ":8080"
	defaultLiveTopic        = "job.live"
	defaultSnapshotTTL      = 30 * time.Second
	defaultPublishPerMinute = 60
	defaultTrackingTokenTTL = 72 * time.Hour
	liveModeKafka           = "kafka"
)

type trackAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    trackAPIOpts
	servers trackAPIServers
	closers []func()
}

func mustBootstrapTrackAPI() *trackAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := &trackAPIApp{ctx: ctx, cancel: cancel}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, "crewtrack-api")
	if err != nil {
		panic(fmt.Sprintf("failed to set up tracing: %v", err))
	}
	app.closers = append(app.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	})

	ct := cfg.CrewTrack
	grpcAddr := orDefault(ct.GRPCAddr, defaultGRPCAddr)
	httpAddr := orDefault(ct.HTTPAddr, defaultHTTPAddr)
	snapshotTTL := time.Duration(ct.SnapshotTTLSeconds) * time.Second
	if snapshotTTL <= 0 {
		snapshotTTL = defaultSnapshotTTL
	}
	speed := ct.AverageSpeedKmh
	if speed <= 0 {
		speed = geo.DefaultAverageSpeedKmh
	}
	// unset means the default, negative turns the stream throttle off
	perMinute := ct.LocationPublishPerMinute
	if perMinute == 0 {
		perMinute = defaultPublishPerMinute
	}
	tokenTTL := time.Duration(cfg.Auth.TrackingTokenTTLHours) * time.Hour
	if tokenTTL <= 0 {
		tokenTTL = defaultTrackingTokenTTL
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	app.closers = append(app.closers, st.Close)

	redisOpts := rediscache.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	rc := rediscache.New(redisOpts)
	rl := rediscache.NewRateLimiter(redisOpts)
	app.closers = append(app.closers, func() { _ = rc.Close(); _ = rl.Close() })

	authn, err := auth.New(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		panic(fmt.Sprintf("auth: %v", err))
	}

	store, err := artifacts.New(cfg.Storage)
	if err != nil {
		panic(fmt.Sprintf("artifact storage: %v", err))
	}
	bucketCtx, bucketCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := store.EnsureBucket(bucketCtx); err != nil {
		slog.Warn("signature bucket not ready", "bucket", cfg.Storage.Bucket, "error", err.Error())
	}
	bucketCancel()

	hub := live.NewHub(ct.StreamBuffer)
	snapshots := live.NewSnapshotCache(rc, snapshotTTL, speed)
	var stream live.Publisher = hub

	if ct.LiveMode == liveModeKafka {
		topic := orDefault(cfg.Kafka.LiveEventsTopicName, defaultLiveTopic)
		brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
		// every instance must see every event from now on: no group, tail only
		origin := instanceID()
		producer := kafka.NewProducer(brokers)
		consumer := kafka.NewConsumer(brokers, topic, "")
		// the snapshot cache is shared through redis; only the hub is per instance
		relay := live.NewRelay(producer, consumer, topic, origin, hub)
		stream = live.Fanout{hub, relay}
		app.servers.background = append(app.servers.background, backgroundTask{name: "live-relay", run: relay.Run})
		app.closers = append(app.closers, func() { _ = consumer.Close(); _ = producer.Close() })
		slog.Info("live events relayed through kafka", "topic", topic, "origin", origin)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	app.closers = append(app.closers, func() { _ = asynqClient.Close() })
	n := cfg.Notifications
	dispatcher := notify.NewDispatcher(asynqClient, n.Queue, n.HandoffBuffer, n.MaxRetry)
	app.servers.background = append(app.servers.background, backgroundTask{name: "notify-dispatcher", run: dispatcher.Run})

	publisher := live.Fanout{snapshots, stream}
	liveSvc := live.New(st, rc, snapshotTTL, speed)
	cpSvc := checkpoints.New(st, publisher, dispatcher)
	locSvc := locations.New(st, stream, snapshots, rl, perMinute)
	app.closers = append(app.closers, locSvc.Close)
	soSvc := signoff.New(st, store, liveSvc, dispatcher)
	jobSvc := jobs.New(st, liveSvc)

	app.servers.http = httpapi.NewRouter(httpapi.Deps{
		Auth:             authn,
		Jobs:             jobSvc,
		Checkpoints:      cpSvc,
		Locations:        locSvc,
		Live:             liveSvc,
		Stream:           hub,
		SignOffs:         soSvc,
		Signatures:       store,
		TrackingTokenTTL: tokenTTL,
		PollInterval:     time.Duration(ct.PollIntervalSeconds) * time.Second,
		SwaggerPath:      swaggerPath,
	})
	app.servers.grpc = tracking_api.NewServer(authn,
		tracking_api.New(jobSvc, cpSvc, locSvc, liveSvc, hub, soSvc))

	app.opts = trackAPIOpts{
		grpcAddr:    grpcAddr,
		httpAddr:    httpAddr,
		swaggerPath: swaggerPath,
	}
	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgtracking.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgtracking.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "track-api"
	}
	return host + "-" + uuid.NewString()[:8]
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (a *trackAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *trackAPIApp) Run() error {
	return runTrackAPI(a.ctx, a.opts, a.servers)
}
