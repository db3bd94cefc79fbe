// Package audit persists an optional trail of broadcast outcomes in MongoDB.
package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BroadcastLog is one fan-out outcome.
type BroadcastLog struct {
	BroadcastID    string    `bson:"broadcast_id"`
	Sent           int       `bson:"sent"`
	Failed         int       `bson:"failed"`
	FailedChannels []string  `bson:"failed_channels,omitempty"`
	Scheduled      bool      `bson:"scheduled"`
	At             time.Time `bson:"at"`
}

// RetractionLog is one retraction attempt.
type RetractionLog struct {
	BroadcastID string    `bson:"broadcast_id"`
	Deleted     int       `bson:"deleted"`
	Total       int       `bson:"total"`
	At          time.Time `bson:"at"`
}

// Logger records broadcast activity. Implementations must be safe to call
// from the hot path; failures are the caller's to log, not to act on.
type Logger interface {
	LogBroadcast(ctx context.Context, entry BroadcastLog) error
	LogRetraction(ctx context.Context, entry RetractionLog) error
}

// NopLogger discards everything. Used when no MongoDB is configured.
type NopLogger struct{}

func (NopLogger) LogBroadcast(context.Context, BroadcastLog) error   { return nil }
func (NopLogger) LogRetraction(context.Context, RetractionLog) error { return nil }

// MongoLogger implements Logger using MongoDB collections.
type MongoLogger struct {
	db *mongo.Database
}

// NewMongoLogger creates and returns a new MongoLogger instance.
// It requires a connected MongoDB database instance.
func NewMongoLogger(db *mongo.Database) *MongoLogger {
	return &MongoLogger{db: db}
}

// LogBroadcast writes a broadcast outcome entry to the database.
func (m *MongoLogger) LogBroadcast(ctx context.Context, entry BroadcastLog) error {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.db.Collection("broadcast_logs").InsertOne(opCtx, entry)
	if err != nil {
		return fmt.Errorf("failed to insert broadcast log %s: %w", entry.BroadcastID, err)
	}
	return nil
}

// LogRetraction writes a retraction entry to the database.
func (m *MongoLogger) LogRetraction(ctx context.Context, entry RetractionLog) error {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.db.Collection("retraction_logs").InsertOne(opCtx, entry)
	if err != nil {
		return fmt.Errorf("failed to insert retraction log %s: %w", entry.BroadcastID, err)
	}
	return nil
}

// ConnectDB establishes a connection to the MongoDB database.
// It returns the client and database object, or an error if the connection
// or the confirmation ping fails.
func ConnectDB(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(context.TODO(), opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Send a ping to confirm a successful connection
	var result bson.M
	if err := client.Database("admin").RunCommand(context.TODO(), bson.D{{Key: "ping", Value: 1}}).Decode(&result); err != nil {
		_ = client.Disconnect(context.TODO())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Println("Successfully connected and pinged MongoDB!")

	return client, client.Database(dbName), nil
}
