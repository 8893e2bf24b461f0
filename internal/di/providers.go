package di

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/repository"
	"FinFactor/internal/handler/api"
	internalrepo "FinFactor/internal/repository"
	icache "FinFactor/internal/service/cache"
	"FinFactor/internal/services/factors"
	"FinFactor/internal/usecase"
	pkgcache "FinFactor/pkg/cache"
	pkgch "FinFactor/pkg/clickhouse"
	"FinFactor/pkg/config"
	pkgkafka "FinFactor/pkg/kafka"
	applogger "FinFactor/pkg/logger"
	"FinFactor/pkg/metrics"
	"FinFactor/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

var (
	recorderOnce sync.Once
	recorder     *metrics.Recorder
)

// ProvideMetrics returns the process-wide Prometheus recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	recorderOnce.Do(func() { recorder = metrics.New(nil) })
	return recorder
}

func needsClickHouse(cfg *config.Config) bool {
	return cfg.Provider.Type == "clickhouse" || cfg.Provider.Company == "clickhouse" || cfg.ResultStore.Enabled
}

// ProvideClickHouseClient connects to ClickHouse when a provider or the result
// store uses it, and returns nil otherwise.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !needsClickHouse(cfg) {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ResultStore.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, pkgch.Schema(client.Database())); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	l.Info("clickhouse connected", applogger.String("database", client.Database()))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePostgres opens the Postgres pool when a provider reads from it.
func ProvidePostgres(cfg *config.Config, l *applogger.Logger) (*sqlx.DB, func(), error) {
	if cfg.Provider.Type != "postgres" && cfg.Provider.Company != "postgres" {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := internalrepo.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.InitSchema {
		if err := internalrepo.NewPostgresProvider(db, cfg.Provider.Timeout).InitSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	l.Info("postgres connected")
	cleanup := func() {
		if err := db.Close(); err != nil {
			l.Warn("postgres close error", applogger.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideCacheService returns a redis-backed layered cache when redis is
// enabled, else an in-process memory cache.
func ProvideCacheService(cfg *config.Config, l *applogger.Logger) (pkgcache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := pkgcache.NewMemoryCache(pkgcache.WithMaxEntries(cfg.Redis.MemorySize))
		return mc, func() { _ = mc.Close() }, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := pkgcache.NewRedisCache(ctx,
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	lc := pkgcache.NewLayeredCache(rc, cfg.Redis.MemorySize, cfg.Redis.MemoryTTL)
	l.Info("redis cache ready", applogger.String("addr", cfg.Redis.Addr))
	return lc, func() { _ = lc.Close() }, nil
}

func baseProvider(kind string, cfg *config.Config, ch *pkgch.Client, pg *sqlx.DB, l *applogger.Logger) (repository.DataProvider, error) {
	switch kind {
	case "memory":
		return internalrepo.NewMemoryProvider(), nil
	case "csv":
		p, err := internalrepo.NewCSVProvider(cfg.Provider.CSVDir)
		if err != nil {
			return nil, err
		}
		p.SetLogger(l)
		return p, nil
	case "clickhouse":
		p := internalrepo.NewClickHouseProvider(ch)
		p.SetLogger(l)
		return p, nil
	case "postgres":
		p := internalrepo.NewPostgresProvider(pg, cfg.Provider.Timeout)
		p.SetLogger(l)
		return p, nil
	}
	return nil, fmt.Errorf("unknown provider type %q", kind)
}

// ProvideDataProvider assembles the provider stack: the configured source
// (optionally split between market and company data), a circuit breaker for
// remote sources, then the cache.
func ProvideDataProvider(cfg *config.Config, ch *pkgch.Client, pg *sqlx.DB, c pkgcache.Service, l *applogger.Logger) (repository.DataProvider, error) {
	p, err := baseProvider(cfg.Provider.Type, cfg, ch, pg, l)
	if err != nil {
		return nil, err
	}
	if cfg.Provider.Company != "" && cfg.Provider.Company != cfg.Provider.Type {
		company, err := baseProvider(cfg.Provider.Company, cfg, ch, pg, l)
		if err != nil {
			return nil, err
		}
		p = internalrepo.NewCompositeProvider(p, company)
	}

	remote := cfg.Provider.Type == "clickhouse" || cfg.Provider.Type == "postgres" ||
		cfg.Provider.Company == "clickhouse" || cfg.Provider.Company == "postgres"
	if remote && cfg.Provider.Breaker.Enabled {
		bc := internalrepo.DefaultBreakerConfig("provider-" + cfg.Provider.Type)
		bc.ConsecutiveFailures = cfg.Provider.Breaker.ConsecutiveFailures
		bc.Timeout = cfg.Provider.Breaker.OpenTimeout
		bc.Retries = cfg.Provider.Breaker.Retries
		bc.Backoff = cfg.Provider.Breaker.Backoff
		b := internalrepo.NewBreakerProvider(p, bc)
		b.SetLogger(l)
		p = b
	}

	if cfg.Provider.Cache.Enabled {
		cp := internalrepo.NewCachedProvider(p, c, cfg.Provider.Cache.TTL)
		cp.SetLogger(l)
		p = cp
	}
	l.Info("data provider ready",
		applogger.String("type", cfg.Provider.Type),
		applogger.String("company", cfg.Provider.Company),
		applogger.Bool("cache", cfg.Provider.Cache.Enabled),
	)
	return p, nil
}

// ProvideRegistry returns the built-in factors plus the configured presets.
func ProvideRegistry(cfg *config.Config, l *applogger.Logger) (*factors.Registry, error) {
	reg := factors.NewDefaultRegistry()
	reg.SetLogger(l)
	if err := reg.RegisterPresets(cfg.Factors); err != nil {
		return nil, fmt.Errorf("factor presets: %w", err)
	}
	return reg, nil
}

// ProvideResultStore returns the ClickHouse result store, or nil when disabled.
func ProvideResultStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.ResultStore {
	if !cfg.ResultStore.Enabled || ch == nil {
		return nil
	}
	s := internalrepo.NewCHResultStore(ch)
	s.SetLogger(l.Component("result_store"))
	return s
}

// ProvideKafkaProducer creates a Kafka producer when report publishing is enabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideResultPublisher publishes report summaries, or is nil without a producer.
func ProvideResultPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) repository.ResultPublisher {
	if producer == nil {
		return nil
	}
	p := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	p.SetLogger(l.Component("publisher"))
	return p
}

// ProvideFactorAnalysis creates the factor analysis use case.
func ProvideFactorAnalysis(
	cfg *config.Config,
	provider repository.DataProvider,
	registry *factors.Registry,
	store repository.ResultStore,
	publisher repository.ResultPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.FactorAnalysis {
	a := usecase.NewFactorAnalysis(provider, registry, usecase.AnalysisConfig{
		Periods:        cfg.Analysis.Periods,
		Method:         models.ICMethod(cfg.Analysis.Method),
		MinInstruments: cfg.Analysis.MinInstruments,
		NQuantiles:     cfg.Analysis.NQuantiles,
		Parallelism:    cfg.Analysis.Parallelism,
	})
	a.SetLogger(l.Component("analysis"))
	a.SetMetrics(m)
	if store != nil {
		a.SetStore(store)
	}
	if publisher != nil {
		a.SetPublisher(publisher)
	}
	return a
}

// ProvideAnalysisRequestHandler handles analysis requests arriving over Kafka.
func ProvideAnalysisRequestHandler(cfg *config.Config, analysis *usecase.FactorAnalysis, l *applogger.Logger) *usecase.AnalysisRequestHandler {
	h := usecase.NewAnalysisRequestHandler(cfg.Kafka.Requests.Topic, analysis)
	h.SetLogger(l.Component("requests"))
	return h
}

// ProvideKafkaConsumer creates the request consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Requests.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Requests.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Requests.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Requests.RetryMax, 500*time.Millisecond, 10*time.Second),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Requests.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l.Component("kafka"))
	return consumer, nil
}

// ProvideResponseCache stores HTTP responses in the shared cache service.
func ProvideResponseCache(c pkgcache.Service) icache.BytesCache {
	return icache.NewServiceCache(c, "http")
}

// ProvideFactorsHandler creates the HTTP handler.
func ProvideFactorsHandler(cfg *config.Config, analysis *usecase.FactorAnalysis, rc icache.BytesCache, l *applogger.Logger) *api.FactorsHandler {
	h := api.NewFactorsHandler(analysis)
	h.SetLogger(l.Component("api"))
	h.SetRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)
	if cfg.Server.ResponseCacheTTL > 0 {
		h.SetCache(rc, cfg.Server.ResponseCacheTTL)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.FactorsHandler,
	consumer *pkgkafka.Consumer,
	rh *usecase.AnalysisRequestHandler,
) *server.App {
	return server.New(cfg, l, h, consumer, rh)
}
