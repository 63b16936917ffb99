package setup

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"nosql-labs/app/labs/model"
	"nosql-labs/app/labs/service"
	"nosql-labs/common/database"
	"nosql-labs/common/log"
	"nosql-labs/common/mongodb"
	ext "nosql-labs/config"
)

// Config loads the settings file. It runs before anything logs, so uptracedsn from the
// file reaches the tracer.
func Config(path string) error {
	return ext.Setup(path)
}

// Mongo connects to the configured deployment.
func Mongo(ctx context.Context) (*mongo.Client, error) {
	var client *mongo.Client
	err := log.WithTracer(ctx, PackageName, "setup MongoDB", func(ctx context.Context) error {
		c, err := mongodb.Connect(ctx, ext.ExtConfig.Mongodb)
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		client = c
		return nil
	})
	return client, err
}

// Redis returns nil when no dsn is configured.
func Redis(ctx context.Context) (*redis.Client, error) {
	cfg := ext.ExtConfig.Redis
	if cfg.Dsn == "" {
		return nil, nil
	}
	var client *redis.Client
	err := log.WithTracer(ctx, PackageName, "setup Redis", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Dsn,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if _, err := client.Ping(ctx).Result(); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return errors.Wrapf(err, "ping redis %s", cfg.Dsn)
		}
		return nil
	})
	return client, err
}

// MinIO returns nil when no endpoint is configured.
func MinIO(ctx context.Context) (*minio.Client, error) {
	cfg := ext.ExtConfig.MinIO
	if cfg.Endpoint == "" {
		return nil, nil
	}
	var client *minio.Client
	err := log.WithTracer(ctx, PackageName, "setup MinIO", func(ctx context.Context) error {
		c, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Key, cfg.Secret, ""),
			Secure: cfg.Secure,
		})
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		client = c
		return nil
	})
	return client, err
}

// Gorm opens the SQL source of import-sql.
func Gorm(ctx context.Context) (*gorm.DB, error) {
	cfg := ext.ExtConfig.SQL
	if cfg.DSN == "" {
		return nil, errors.New("sql.dsn is not configured")
	}
	var db *gorm.DB
	err := log.WithTracer(ctx, PackageName, "setup GORM", func(ctx context.Context) error {
		d, err := database.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			return err
		}
		db = d
		return nil
	})
	return db, err
}

// Reporters builds the console reporter, when out is set, followed by the configured ones.
// Clients are only dialed for the formats that need them.
func Reporters(ctx context.Context, client *mongo.Client, formats []string, out io.Writer) ([]service.Reporter, error) {
	reporters := make([]service.Reporter, 0, len(formats)+1)
	if out != nil {
		reporters = append(reporters, &service.ConsoleReporter{Out: out})
	}
	cfg := ext.ExtConfig
	deps := service.ReporterDeps{
		Dir:          cfg.Reports.Dir,
		History:      cfg.Reports.History,
		RedisTTL:     time.Duration(cfg.Redis.TTL) * time.Second,
		Bucket:       cfg.MinIO.Bucket,
		WebhookURL:   cfg.Webhook.URL,
		OnlyFailures: cfg.Webhook.OnlyFailures,
	}
	if client != nil {
		deps.Mongo = client.Database(DefaultDatabase())
	}
	for _, format := range formats {
		switch format {
		case "redis":
			if deps.Redis != nil {
				continue
			}
			r, err := Redis(ctx)
			if err != nil {
				return nil, err
			}
			if r != nil {
				deps.Redis = r
			}
		case "minio":
			if deps.MinIO != nil {
				continue
			}
			m, err := MinIO(ctx)
			if err != nil {
				return nil, err
			}
			deps.MinIO = m
		}
	}
	configured, err := service.NewReporters(formats, deps)
	if err != nil {
		return nil, err
	}
	return append(reporters, configured...), nil
}

// DefaultDatabase is the database used when neither a book nor a flag names one.
func DefaultDatabase() string {
	if name := ext.ExtConfig.Mongodb.Database; name != "" {
		return name
	}
	return "test"
}

// LoadBook reads arg as a file when it exists, otherwise looks it up by name in the books directory.
func LoadBook(arg string) (*model.QueryBook, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return model.LoadBook(arg)
	}
	store := &service.BookStore{Dir: ext.ExtConfig.Data.Books}
	return store.Get(arg)
}
