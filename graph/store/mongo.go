package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is a MongoDB implementation of Store[S]. Snapshots and
// checkpoints live in the "snapshots" and "checkpoints" collections of the
// given database.
type MongoStore[S any] struct {
	snapshots   *mongo.Collection
	checkpoints *mongo.Collection
}

var _ Store[int] = (*MongoStore[int])(nil)

type snapshotDoc struct {
	ID         string `bson:"_id"`
	InstanceID string `bson:"instance_id"`
	Seq        int    `bson:"seq"`
	State      string `bson:"state"`
}

type checkpointDoc struct {
	ID    string `bson:"_id"`
	Seq   int    `bson:"seq"`
	State string `bson:"state"`
}

// NewMongoStore creates a MongoStore in database dbName (default
// "flowchart") and ensures the snapshot index exists.
func NewMongoStore[S any](ctx context.Context, client *mongo.Client, dbName string) (*MongoStore[S], error) {
	if dbName == "" {
		dbName = "flowchart"
	}
	db := client.Database(dbName)
	s := &MongoStore[S]{
		snapshots:   db.Collection("snapshots"),
		checkpoints: db.Collection("checkpoints"),
	}

	_, err := s.snapshots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "instance_id", Value: 1}, {Key: "seq", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot index: %w", err)
	}
	return s, nil
}

// SaveSnapshot implements Store.
func (s *MongoStore[S]) SaveSnapshot(ctx context.Context, instanceID string, seq int, state S) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	doc := snapshotDoc{
		ID:         instanceID + ":" + strconv.Itoa(seq),
		InstanceID: instanceID,
		Seq:        seq,
		State:      string(data),
	}
	_, err = s.snapshots.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *MongoStore[S]) LoadLatest(ctx context.Context, instanceID string) (S, int, error) {
	var zero S

	var doc snapshotDoc
	err := s.snapshots.FindOne(ctx,
		bson.M{"instance_id": instanceID},
		options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	state, err := decodeState[S]([]byte(doc.State))
	if err != nil {
		return zero, 0, err
	}
	return state, doc.Seq, nil
}

// SaveCheckpoint implements Store.
func (s *MongoStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, seq int) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	doc := checkpointDoc{ID: cpID, Seq: seq, State: string(data)}
	_, err = s.checkpoints.ReplaceOne(ctx, bson.M{"_id": cpID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (s *MongoStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (S, int, error) {
	var zero S

	var doc checkpointDoc
	err := s.checkpoints.FindOne(ctx, bson.M{"_id": cpID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	state, err := decodeState[S]([]byte(doc.State))
	if err != nil {
		return zero, 0, err
	}
	return state, doc.Seq, nil
}

// DeleteInstance implements Store.
func (s *MongoStore[S]) DeleteInstance(ctx context.Context, instanceID string) error {
	if _, err := s.snapshots.DeleteMany(ctx, bson.M{"instance_id": instanceID}); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return nil
}
