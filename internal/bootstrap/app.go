package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appsvc "teamspace/internal/app"
	"teamspace/internal/blobstore"
	"teamspace/internal/config"
	"teamspace/internal/model"
	mysqlClient "teamspace/internal/platform/mysql"
	rabbitmqClient "teamspace/internal/platform/rabbitmq"
	redisClient "teamspace/internal/platform/redis"
	"teamspace/internal/realtime"
	"teamspace/internal/repository"
	"teamspace/internal/upload"
	"teamspace/internal/worker"
)

type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Blobs       *blobstore.Store
	Tracker     *upload.Tracker
	Registry    *realtime.Registry
	EventWorker *worker.EventPersistWorker
	Sweeper     *appsvc.CleanupService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Workspace{},
		&model.WorkspaceMember{},
		&model.Task{},
		&model.Comment{},
		&model.File{},
		&model.EventRecord{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	blobs, err := blobstore.Open(ctx, cfg.Blob.BucketURL)
	if err != nil {
		return nil, err
	}

	tracker := upload.NewTracker()
	registry := realtime.NewRegistry(cfg.Realtime.BufferSize)

	eventRepo := repository.NewEventRepository(mysqlDB)
	eventWorker := worker.NewEventPersistWorker(mqConn, eventRepo, cfg.RabbitMQ.EventAuditQueue)
	if err := eventWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start event worker failed: %w", err)
	}

	sweeper := appsvc.NewCleanupService(blobs, tracker, cfg.Upload.TempPrefix, cfg.SessionMaxAge())
	sweeper.Start(ctx, cfg.SweepInterval())

	return &App{
		Config:      cfg,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		Blobs:       blobs,
		Tracker:     tracker,
		Registry:    registry,
		EventWorker: eventWorker,
		Sweeper:     sweeper,
		StartedAt:   time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Sweeper != nil {
		a.Sweeper.Close()
	}
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Blobs != nil {
		if err := a.Blobs.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
