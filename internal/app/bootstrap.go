package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"catalogai/internal/adapter/chromem"
	mstore "catalogai/internal/adapter/mongo"
	wstore "catalogai/internal/adapter/weaviate"
	"catalogai/internal/config"
)

type Dependencies struct {
	DB          *sql.DB
	VectorStore VectorStore
	NSQProducer *nsq.Producer

	closers []func(context.Context) error
}

// Close releases connections opened by Bootstrap in reverse order.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	fail := func(err error) (*Dependencies, error) {
		_ = deps.Close(context.Background())
		return nil, err
	}

	// Database
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	deps.DB = db
	deps.closers = append(deps.closers, func(context.Context) error { return db.Close() })

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		return fail(fmt.Errorf("failed to ping db: %w", err))
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fail(fmt.Errorf("migration driver error: %w", err))
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		return fail(fmt.Errorf("migration instance error: %w", err))
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fail(fmt.Errorf("migration up error: %w", err))
	}

	// Vector store
	vecStore, err := openVectorStore(ctx, cfg, deps)
	if err != nil {
		return fail(err)
	}
	deps.VectorStore = vecStore

	if ensurer, ok := vecStore.(SchemaEnsurer); ok {
		if err := EnsureSchemaWithRetry(ctx, ensurer, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
			return fail(fmt.Errorf("%s schema error: %w", cfg.VectorBackend, err))
		}
	}

	// NSQ Producer
	nsqCfg := nsq.NewConfig()
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
	if err != nil {
		return fail(fmt.Errorf("nsq producer error: %w", err))
	}
	deps.NSQProducer = producer
	deps.closers = append(deps.closers, func(context.Context) error { producer.Stop(); return nil })

	createTopics(cfg.NSQDHTTP)

	return deps, nil
}

func openVectorStore(ctx context.Context, cfg *config.Config, deps *Dependencies) (VectorStore, error) {
	switch cfg.VectorBackend {
	case config.BackendWeaviate:
		wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		return wstore.NewStore(wClient), nil

	case config.BackendMongo:
		client, err := mstore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, client.Disconnect)
		coll := client.Database(cfg.MongoDB).Collection(cfg.MongoCollection)
		return mstore.NewStore(coll, cfg.MongoIndex), nil

	case config.BackendChromem:
		store, err := chromem.NewStore(cfg.ChromemPath, cfg.ChromemCompress, cfg.ChromemNamespace)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: VECTOR_BACKEND=%q", config.ErrInvalidValue, cfg.VectorBackend)
	}
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngestDocument)
	}()
}

// EnsureSchemaWithRetry retries schema creation while the backend starts.
func EnsureSchemaWithRetry(ctx context.Context, store SchemaEnsurer, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureSchema(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}
