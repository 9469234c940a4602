package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/BearBump/CrewTrack/config"
	"github.com/BearBump/CrewTrack/internal/cache/rediscache"
	"github.com/BearBump/CrewTrack/internal/geo"
	"github.com/BearBump/CrewTrack/internal/notify"
	"github.com/BearBump/CrewTrack/internal/notify/channel/logchannel"
	"github.com/BearBump/CrewTrack/internal/notify/channel/webhook"
	"github.com/BearBump/CrewTrack/internal/services/live"
	"github.com/BearBump/CrewTrack/internal/services/warmer"
	"github.com/BearBump/CrewTrack/internal/storage/pgtracking"
)

const (
	defaultWorkerConcurrency = 10
	defaultSnapshotTTL       = 30 * time.Second
)

// workerStore is what the worker needs from Postgres.
type workerStore interface {
	notify.Repository
	warmer.Repository
	live.Repository
}

// taskServer is the asynq server surface the worker drives.
type taskServer interface {
	Start(handler asynq.Handler) error
	Shutdown()
}

type workerFactories struct {
	newStorage    func(cfg *config.Config) (repo workerStore, closeFn func(), err error)
	newRebuilder  func(cfg *config.Config, repo workerStore) (warmer.Rebuilder, func())
	newChannel    func(cfg *config.Config) notify.Channel
	newTaskServer func(cfg *config.Config) taskServer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			st, err := pgtracking.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newRebuilder: func(cfg *config.Config, repo workerStore) (warmer.Rebuilder, func()) {
			rc := rediscache.New(redisOptions(cfg))
			ttl := time.Duration(cfg.CrewTrack.SnapshotTTLSeconds) * time.Second
			if ttl <= 0 {
				ttl = defaultSnapshotTTL
			}
			speed := cfg.CrewTrack.AverageSpeedKmh
			if speed <= 0 {
				speed = geo.DefaultAverageSpeedKmh
			}
			return live.New(repo, rc, ttl, speed), func() { _ = rc.Close() }
		},
		newChannel: func(cfg *config.Config) notify.Channel {
			// without a gateway configured, messages are only logged
			if cfg.Notifications.WebhookURL != "" {
				return webhook.New(cfg.Notifications.WebhookURL, cfg.Notifications.WebhookAPIKey)
			}
			return logchannel.New()
		},
		newTaskServer: func(cfg *config.Config) taskServer {
			concurrency := cfg.CrewTrack.WorkerConcurrency
			if concurrency <= 0 {
				concurrency = defaultWorkerConcurrency
			}
			queue := cfg.Notifications.Queue
			if queue == "" {
				queue = notify.DefaultQueue
			}
			return asynq.NewServer(asynqRedisOpt(cfg), asynq.Config{
				Concurrency: concurrency,
				Queues:      map[string]int{queue: 1},
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					slog.Warn("notification task failed", "type", task.Type(), "error", err.Error())
				}),
			})
		},
	}
}

func redisOptions(cfg *config.Config) rediscache.Options {
	return rediscache.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}
}

func asynqRedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}
}

// RunTrackWorker processes notification tasks and keeps the snapshot cache
// warm until ctx is done. When httpOpts has a swagger path it also serves the
// ops endpoints.
func RunTrackWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	interval := time.Duration(cfg.CrewTrack.WarmerIntervalSeconds) * time.Second

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	rebuilder, closeRebuilder := f.newRebuilder(cfg, repo)
	if closeRebuilder != nil {
		defer closeRebuilder()
	}

	handler := notify.NewHandler(repo, f.newChannel(cfg), cfg.Notifications.OpsEmail)
	srv := f.newTaskServer(cfg)
	if err := srv.Start(handler.Mux()); err != nil {
		return err
	}
	defer srv.Shutdown()

	w := warmer.New(repo, rebuilder).WithSettings(interval, cfg.CrewTrack.WarmerConcurrency)

	if httpOpts.swaggerPath != "" {
		httpOpts.warmer = w
		httpOpts.cfg = cfg
		go func() {
			if err := runWorkerHTTPServer(ctx, httpOpts); err != nil {
				slog.Error("worker http server stopped", "error", err.Error())
			}
		}()
	}

	return w.Run(ctx)
}
