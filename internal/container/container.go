package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"hempies/coasync/internal/client"
	"hempies/coasync/internal/config"
	"hempies/coasync/internal/destination"
	"hempies/coasync/internal/engine"
	"hempies/coasync/internal/filter"
	"hempies/coasync/internal/notify"
	"hempies/coasync/internal/repository"
	"hempies/coasync/internal/server"
	"hempies/coasync/internal/state"
	syncsvc "hempies/coasync/internal/sync"
)

// Container holds all initialized components
type Container struct {
	Config    *config.Config
	Client    client.SquareClient
	Adapter   destination.Adapter
	Store     state.Store
	Service   *syncsvc.Service
	Scheduler *syncsvc.Scheduler
	Server    *server.Server

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	store, err := c.initStore(cfg)
	if err != nil {
		return nil, err
	}
	c.Store = store

	adapter, err := newAdapter(cfg)
	if err != nil {
		return nil, err
	}
	c.Adapter = adapter

	squareClient := client.NewSquareClient(cfg.Square)
	c.Client = squareClient

	excluded := filter.New(cfg.ExcludedCategories())
	log.Infof("Exclusion list loaded with %d categories", excluded.Size())

	mailer := notify.NewMailer(cfg.Notify)
	eng := engine.New(adapter, excluded, mailer, store)

	runs, err := c.initRunRepository(cfg)
	if err != nil {
		return nil, err
	}

	service := syncsvc.NewService(store, squareClient, eng, runs, cfg.ValidateCredentials)
	c.Service = service

	scheduler := syncsvc.NewScheduler(service,
		time.Duration(cfg.Sync.TickInterval)*time.Second, cfg.Sync.DailyHour)
	c.Scheduler = scheduler

	c.Server = server.New(cfg.Server, service, scheduler)

	return c, nil
}

func (c *Container) initStore(cfg *config.Config) (state.Store, error) {
	if cfg.Redis.Host == "" {
		log.Warn("Redis not configured - sync state will not survive restarts")
		return state.NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("✅ Connected to Redis successfully")

	c.redis = rdb
	return state.NewRedisStore(rdb), nil
}

func (c *Container) initRunRepository(cfg *config.Config) (repository.RunRepository, error) {
	if cfg.Database.Host == "" {
		log.Info("Database not configured - sync run history disabled")
		return nil, nil
	}

	db, err := pgxpool.New(context.Background(),
		fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
		))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c.db = db
	return repository.NewRunRepository(db), nil
}

func newAdapter(cfg *config.Config) (destination.Adapter, error) {
	switch cfg.Destination.Kind {
	case "wordpress":
		return destination.NewWordPressAdapter(cfg.WordPress), nil
	case "airtable":
		return destination.NewAirtableAdapter(cfg.Airtable), nil
	default:
		return nil, fmt.Errorf("unknown destination kind: %q", cfg.Destination.Kind)
	}
}

// Run starts the scheduler and control API and blocks until the context
// is cancelled.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Scheduler.Run(ctx)
	})

	g.Go(func() error {
		return c.Server.Run(ctx)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			return err
		}
	}

	log.Info("Container shut down successfully")
	return nil
}
