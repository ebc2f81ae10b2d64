package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongorepo "github.com/yoockh/prepdeck/internal/repositories/mongo"
)

// EnsureMongoIndexes creates the indexes session queries and the unique-id
// constraint rely on.
func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions := MongoDatabase().Collection(mongorepo.SessionsCollection)
	_, err := sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_session_id").
				SetUnique(true),
		},
		// matches the query sort: started_at desc, session_id asc
		{
			Keys: bson.D{
				{Key: "candidate_id", Value: 1},
				{Key: "started_at", Value: -1},
				{Key: "session_id", Value: 1},
			},
			Options: options.Index().SetName("by_candidate_started"),
		},
		{
			Keys:    bson.D{{Key: "candidate_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("by_candidate_status"),
		},
	})
	return err
}
