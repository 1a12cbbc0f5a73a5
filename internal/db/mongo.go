package db

import (
	"context"
	"time"

	"github.com/havenlab/apiserver/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoTimeout = 10 * time.Second

// OpenMongo connects to the document store holding users, bookings, rooms and
// the payment audit log.
func OpenMongo(ctx context.Context, cfg config.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultMongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client.Database(cfg.Mongo.DBName), nil
}
