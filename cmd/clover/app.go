package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/payee"
	"github.com/Ramsey-B/clover/internal/repositories/transaction"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/semantic"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
	_ "github.com/lib/pq"
)

// app owns every connection the commands share. Optional backends stay nil when disabled.
type app struct {
	cfg     *config.Config
	logger  ectologger.Logger
	startup *startup.Startup

	db        database.DB
	redis     *redis.Client
	producer  *kafka.Producer
	lineage   *graph.LineageService
	gateway   semantic.Gateway
	service   *dedupe.Service
	stopTrace func(context.Context) error
}

type appOptions struct {
	// migrate applies pending migrations once the database is reachable
	migrate bool
}

func newApp(cfg *config.Config, logger ectologger.Logger, opts appOptions) *app {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}

	a.startup.AddDependency(startup.Dependency{Name: "tracing", OnStart: a.startTracing, OnStop: a.stopTracing})
	a.startup.AddDependency(startup.Dependency{
		Name:    "database",
		OnStart: a.startDatabase,
		OnStop:  func(context.Context) error { return a.db.Close() },
	})

	required := []string{"tracing", "database"}
	if opts.migrate {
		a.startup.AddDependency(startup.Dependency{Name: "migrations", Requires: []string{"database"}, OnStart: a.migrate})
		required = append(required, "migrations")
	}
	if cfg.RedisEnabled {
		a.startup.AddDependency(startup.Dependency{
			Name:    "redis",
			OnStart: a.startRedis,
			OnStop:  func(context.Context) error { return a.redis.Close() },
		})
		required = append(required, "redis")
	}
	if cfg.KafkaEnabled {
		a.startup.AddDependency(startup.Dependency{
			Name:    "kafka",
			OnStart: a.startKafka,
			OnStop:  func(context.Context) error { return a.producer.Close() },
		})
		required = append(required, "kafka")
	}
	if cfg.GraphDBEnabled {
		a.startup.AddDependency(startup.Dependency{
			Name:    "graph",
			OnStart: a.startGraph,
			OnStop:  func(ctx context.Context) error { return a.lineage.Close(ctx) },
		})
		required = append(required, "graph")
	}
	a.startup.AddDependency(startup.Dependency{Name: "semantic", OnStart: a.startGateway, OnStop: a.stopGateway})
	required = append(required, "semantic")

	a.startup.AddDependency(startup.Dependency{Name: "service", Requires: required, OnStart: a.startService})
	return a
}

func (a *app) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

func (a *app) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}

func (a *app) startTracing(ctx context.Context) error {
	exporter, err := exporters.New(ctx, a.cfg.TracingExporter, exporters.OTLPConfig{
		Endpoint: a.cfg.OTLPEndpoint,
		Protocol: a.cfg.OTLPProtocol,
		Insecure: a.cfg.OTLPInsecure,
		Headers:  a.cfg.OTLPHeaderMap(),
		Timeout:  10 * time.Second,
	}, a.logger)
	if err != nil {
		return err
	}
	a.stopTrace = tracing.Setup(a.cfg.AppName, a.cfg.Version, exporter)
	return nil
}

func (a *app) stopTracing(ctx context.Context) error {
	if a.stopTrace == nil {
		return nil
	}
	return a.stopTrace(ctx)
}

func (a *app) startDatabase(ctx context.Context) error {
	db, err := database.Open(ctx, database.Config{
		Driver:          a.cfg.DatabaseDriver,
		DSN:             a.cfg.DatabaseDSN(),
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	return nil
}

func (a *app) migrate(context.Context) error {
	sqlDB, ok := database.SQLDB(a.db)
	if !ok {
		return fmt.Errorf("database handle does not support migrations")
	}
	return database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		DatabaseName:        a.cfg.DatabaseName,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
	}).Migrate(sqlDB)
}

func (a *app) startRedis(context.Context) error {
	client, err := redis.NewClient(redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

func (a *app) startKafka(context.Context) error {
	a.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaOutputTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	return nil
}

func (a *app) startGraph(ctx context.Context) error {
	lineage, err := graph.Connect(ctx, graph.Config{
		Host:     a.cfg.GraphDBHost,
		Port:     a.cfg.GraphDBPort,
		Username: a.cfg.GraphDBUser,
		Password: a.cfg.GraphDBPassword,
	}, a.logger)
	if err != nil {
		return err
	}
	a.lineage = lineage
	return nil
}

func (a *app) startGateway(ctx context.Context) error {
	gateway, err := semantic.NewGateway(ctx, semantic.Config{
		Provider:  a.cfg.LLMProvider,
		Model:     a.cfg.LLMModel,
		APIKey:    a.cfg.LLMAPIKey,
		BaseURL:   a.cfg.LLMBaseURL,
		MaxTokens: a.cfg.LLMMaxTokens,
		Timeout:   a.cfg.LLMTimeout,
	}, a.logger)
	if err != nil {
		return err
	}
	a.gateway = gateway
	return nil
}

func (a *app) stopGateway(context.Context) error {
	if closer, ok := a.gateway.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (a *app) startService(context.Context) error {
	prompts, err := semantic.LoadPrompts(a.cfg.LLMPromptsFile)
	if err != nil {
		return err
	}

	opts := []dedupe.Option{dedupe.WithDetectionTimeout(a.cfg.DetectionTimeout)}
	if a.redis != nil {
		opts = append(opts,
			dedupe.WithCache(redis.NewDetectionCache(a.redis, a.cfg.DetectionCacheTTL, a.logger)),
			dedupe.WithDiagnosticsStore(redis.NewDiagnosticsLog(a.redis, a.cfg.DiagnosticsLimit, a.cfg.DiagnosticsRetention, a.logger)),
		)
	}
	if a.producer != nil {
		opts = append(opts, dedupe.WithEvents(events.NewEmitter(a.producer, a.logger)))
	}
	if a.lineage != nil {
		opts = append(opts, dedupe.WithLineage(a.lineage))
	}

	a.service = dedupe.NewService(
		a.logger,
		payee.NewRepository(a.db, a.logger),
		transaction.NewRepository(a.db, a.logger),
		semantic.NewRefiner(a.gateway, prompts, a.logger),
		opts...,
	)
	return nil
}
