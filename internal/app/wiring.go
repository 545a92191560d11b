package app

import (
	"context"
	"fmt"
	"time"

	httpapi "odinboard/internal/api/http"
	"odinboard/internal/api/http/handlers"
	"odinboard/internal/api/http/mw"
	"odinboard/internal/cache"
	"odinboard/internal/config"
	"odinboard/internal/dedupe"
	rdsdedupe "odinboard/internal/dedupe/redis"
	"odinboard/internal/domain"
	"odinboard/internal/feed"
	"odinboard/internal/metrics"
	"odinboard/internal/proxy"
	"odinboard/internal/pubsub/nats"
	"odinboard/internal/score"
	"odinboard/internal/security"
	"odinboard/internal/service"
	"odinboard/internal/stores/clickhouse"
	"odinboard/internal/stores/redis"
	"odinboard/internal/upstream"

	"github.com/grafana/pyroscope-go"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

type Container struct {
	app *App

	// infra
	redis    *redis.Client
	ch       *clickhouse.Conn
	chWriter *clickhouse.Writer
	nc       *nats.Client

	// servers
	httpSrv *httpapi.Server

	// metrics
	profiler *pyroscope.Profiler

	cleanupF func()
}

func (c *Container) Start(ctx context.Context) error {
	return c.app.Start(ctx)
}

func (c *Container) Stop(ctx context.Context) error {
	if err := c.app.Shutdown(ctx); err != nil {
		return fmt.Errorf("app shutdown is failed, error=%w", err)
	}
	return nil
}

// Construct image app
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	profiler, err := metrics.InitPProf(cfg.App.InstanceID, &cfg.Metrics.Pyroscope)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize pyroscope: %w", err)
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	// Redis client, only when something needs it
	var rdb *redis.Client
	if needRedis(cfg) {
		if rdb, err = redis.New(ctx, &cfg.Stores.Redis); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis client: %w", err)
		}
		lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)
	}

	// Cache store behind the proxy
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		if store, err = cache.NewRedisStore(lg, rdb, cfg.Cache.Prefix, cfg.Cache.StaleFactor, cfg.Cache.MinRetention); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis cache store: %w", err)
		}
	default:
		store = cache.NewMemoryStore(lg, cfg.Cache.StaleFactor, cfg.Cache.MinRetention, cfg.Cache.JanitorEvery)
	}
	lg.Infof("Successfully initialize cache store, backend=%s", cfg.Cache.Backend)

	// Caching proxy
	pxy, err := proxy.New(lg, store, &cfg.Cache.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize proxy: %w", err)
	}

	// Upstream client
	up, err := upstream.New(lg, &cfg.Upstream)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize upstream client: %w", err)
	}
	lg.Infof("Successfully initialize upstream client, base_url=%s", cfg.Upstream.BaseURL)

	// Scoring + creator resolution
	engine := score.NewEngine(lg, &cfg.Scoring)
	creators := feed.NewCreatorCache(0)
	resolver := feed.NewCreatorResolver(lg, pxy, up, engine, 0)

	// Sync pipeline
	pipeline := feed.NewPipeline(lg, pxy, up, resolver, creators, feed.Options{
		NewestInterval:   cfg.Sync.NewestInterval,
		OlderInterval:    cfg.Sync.OlderInterval,
		OlderLimit:       cfg.Sync.OlderLimit,
		HighlightTTL:     cfg.Sync.HighlightTTL,
		MaxConcurrent:    cfg.Sync.MaxConcurrent,
		SnapshotInterval: cfg.Sync.SnapshotInterval,
	})

	// Announce dedupe, redis-backed when a client exists
	var deduper dedupe.Deduper
	if rdb != nil {
		var bloom *rdsdedupe.Bloom
		if cfg.Dedupe.Bloom.Enabled {
			if bloom, err = rdsdedupe.NewBloom(&cfg.Dedupe.Bloom, rdb); err != nil {
				return nil, nil, fmt.Errorf("failed to initialize bloom: %w", err)
			}
			if err = bloom.Ensure(ctx); err != nil {
				lg.Warnf("Bloom reserve failed, continuing without prefilter: %v", err)
				bloom = nil
			}
		}
		if deduper, err = rdsdedupe.NewRedisDeduper(lg, &cfg.Dedupe, rdb, bloom); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis deduper: %w", err)
		}
		lg.Infof("Successfully initialize Deduper redis_client by prefix %s", cfg.Dedupe.Prefix)
	} else {
		deduper = dedupe.NewInMemoryDedupe(lg, cfg.Dedupe.TTL, 0)
		lg.Info("Successfully initialize Deduper in-memory")
	}
	pipeline.WithDeduper(deduper)

	// NATS Broadcaster
	var natsCl *nats.Client
	if cfg.PubSub.NATS.Enabled {
		if natsCl, err = nats.New(lg, &cfg.PubSub.NATS); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize nats client: %w", err)
		}
		pipeline.WithBroadcaster(natsCl)
		lg.Infof("Successfully initialize nats client, url=%s", cfg.PubSub.NATS.URL)
	}

	// ClickHouse score history
	var (
		ch       *clickhouse.Conn
		chWriter *clickhouse.Writer
	)
	if cfg.Stores.ClickHouse.Enabled {
		if ch, err = clickhouse.New(ctx, &cfg.Stores.ClickHouse); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize clickhouse client: %w", err)
		}
		chWriter = clickhouse.NewWriter(lg, ch.Native, cfg.Stores.ClickHouse)
		pipeline.WithScoreSink(chWriter)
		lg.Info("Successfully initialize clickhouse writer")
	}

	// Warm-start snapshots
	if rdb != nil && cfg.Sync.SnapshotInterval > 0 {
		pipeline.WithSnapshotStore(redis.NewSnapshotStore(rdb, "", 0))
		lg.Info("Successfully initialize warm-start snapshot store")
	}

	// Ranking service
	board := service.NewBoardService(lg, pipeline, tierThresholds(&cfg.Scoring.Tiers))
	board.RegisterDependency("cache", pxy)
	if chWriter != nil {
		board.RegisterDependency("clickhouse", chWriter)
	}
	if natsCl != nil {
		board.RegisterDependency("nats", natsCl)
	}

	// JWT verifier for the admin surface
	var jwtMW *mw.JWTMiddleware
	var verifier *security.RS256Verifier
	if cfg.Security.JWT.Enabled {
		if verifier, err = security.NewRS256Verifier(&cfg.Security.JWT); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize JWT verifier: %w", err)
		}
		jwtMW = mw.NewJWTMiddleware(verifier)
		lg.Info("Successfully initialize JWT-Verifier")
	}

	// Rate limiting, needs redis
	var rateLimitMW *mw.RateLimitMiddleware
	if cfg.RateLimit.Enabled && rdb != nil {
		rateLimitMW = mw.NewRateLimit(rdb.Client, mw.RateLimitConfig{
			ByJWT: mw.RateBucket{
				RefillPerSec: cfg.RateLimit.ByJWT.RefillPerSec,
				Burst:        cfg.RateLimit.ByJWT.Burst,
			},
			ByIP: mw.RateBucket{
				RefillPerSec: cfg.RateLimit.ByIP.RefillPerSec,
				Burst:        cfg.RateLimit.ByIP.Burst,
			},
			Verifier: verifier,
		})
	}

	var corsMW *mw.CORSMiddleware
	if cfg.API.HTTP.CORS.Enabled {
		corsMW = mw.NewCORSConfig(&cfg.API.HTTP.CORS)
	}

	// HTTP surface
	h := handlers.New(lg, pxy, up, board, pipeline)
	router := httpapi.BuildRouter(h, mw.NewLogging(lg), mw.NewGzip(0, lg), rateLimitMW, jwtMW, corsMW)
	httpSrv := httpapi.NewServer(lg, &cfg.API.HTTP, router)
	lg.Info("Successfully initialize HTTP server")

	c := &Container{
		app:      NewApp(lg, httpSrv, pipeline),
		redis:    rdb,
		ch:       ch,
		chWriter: chWriter,
		nc:       natsCl,
		httpSrv:  httpSrv,
		profiler: profiler,
	}

	cleanupF := func() {
		ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if c.profiler != nil {
			if err := c.profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		}

		if err := httpSrv.Shutdown(ctxClean); err != nil {
			lg.Errorf("Failed to shutdown by cleanupF HTTP server: %v", err)
		}

		if c.chWriter != nil {
			if err := c.chWriter.Close(ctxClean); err != nil {
				lg.Errorf("Failed to close by cleanupF clickhouse writer: %v", err)
			}
		}
		if c.ch != nil {
			if err := c.ch.Close(); err != nil {
				lg.Errorf("Failed to close by cleanupF clickhouse client: %v", err)
			}
		}

		if c.nc != nil {
			if err := c.nc.Close(); err != nil {
				lg.Errorf("Failed to close by cleanupF nats client: %v", err)
			}
		}

		if closer, ok := store.(interface{ Close() }); ok {
			closer.Close()
		}

		if c.redis != nil {
			if err := c.redis.Close(); err != nil {
				lg.Errorf("Failed to close by cleanupF redis client: %v", err)
			}
		}

		lg.Info("Successfully cleaned up dependency")
	}

	lg.Info("Successfully initialize Wiring")
	return c, cleanupF, nil
}

func needRedis(cfg *config.Config) bool {
	return cfg.Cache.Backend == "redis" ||
		cfg.RateLimit.Enabled ||
		cfg.Dedupe.Bloom.Enabled ||
		cfg.Sync.SnapshotInterval > 0
}

// yaml zero values fall back to the product defaults
func tierThresholds(t *config.TierThresholdsConfig) domain.TierThresholds {
	out := domain.DefaultTierThresholds()
	if t.Legendary > 0 {
		out.Legendary = t.Legendary
	}
	if t.Epic > 0 {
		out.Epic = t.Epic
	}
	if t.Great > 0 {
		out.Great = t.Great
	}
	if t.Okay > 0 {
		out.Okay = t.Okay
	}
	if t.Neutral > 0 {
		out.Neutral = t.Neutral
	}
	if t.Meh > 0 {
		out.Meh = t.Meh
	}
	return out
}
