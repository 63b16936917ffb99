package mongodb

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"nosql-labs/common/log"
	ext "nosql-labs/config"
)

// Connect dials cfg.DSN and pings the primary within cfg.Timeout().
func Connect(ctx context.Context, cfg ext.MongodbConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()
	opts := options.Client().ApplyURI(cfg.DSN)
	if log.UptraceOk() {
		opts.SetMonitor(otelmongo.NewMonitor())
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", redact(cfg.DSN))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrapf(err, "ping %s", redact(cfg.DSN))
	}
	return client, nil
}

// redact hides the password of a mongodb:// URI.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	host := rest
	if slash := strings.Index(rest, "/"); slash >= 0 {
		host = rest[:slash]
	}
	at := strings.LastIndex(host, "@")
	if at < 0 {
		return dsn
	}
	user, _, hasPassword := strings.Cut(host[:at], ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":***" + rest[at:]
}
