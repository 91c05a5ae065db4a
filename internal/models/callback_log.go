package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	AuditDbName        = "dakshaa"
	CallbacksColName   = "payment_callbacks"
	callbackRetention  = 90 * 24 * time.Hour
	defaultHistorySize = 20
)

// CallbackRecord is one normalized callback as it reached the engine.
type CallbackRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID      string             `bson:"order_id" json:"order_id"`
	Transport    string             `bson:"transport" json:"transport"`
	Status       string             `bson:"status,omitempty" json:"status,omitempty"`
	Amount       *float64           `bson:"amount,omitempty" json:"amount,omitempty"`
	GatewayTxnID string             `bson:"gateway_txn_id,omitempty" json:"gateway_txn_id,omitempty"`
	Raw          map[string]string  `bson:"raw" json:"raw"`
	Verdict      string             `bson:"verdict,omitempty" json:"verdict,omitempty"`
	Outcome      string             `bson:"outcome" json:"outcome"`
	ReceivedAt   time.Time          `bson:"received_at" json:"received_at"`
	ExpiresAt    time.Time          `bson:"expires_at" json:"-"`
}

type CallbackLogRepo interface {
	RecordCallback(ctx context.Context, rec *CallbackRecord) error
	ListCallbacks(ctx context.Context, orderID string, limit int) ([]*CallbackRecord, error)
	EnsureCallbackIndexes(ctx context.Context) error
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, dbName, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(dbName).Collection(colName), nil
}

func (mdb *MongodbRepo) EnsureCallbackIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, AuditDbName, CallbacksColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(0).
				SetName("expires_at_ttl"),
		},
		{
			Keys: bson.D{
				{Key: "order_id", Value: 1},
				{Key: "received_at", Value: -1},
			},
			Options: options.Index().SetName("order_received_at_idx"),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating indexes: %v", err)
	}
	return nil
}

func (mdb *MongodbRepo) RecordCallback(ctx context.Context, rec *CallbackRecord) error {
	col, err := mdb.GetCollection(ctx, AuditDbName, CallbacksColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %v", err)
	}

	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	rec.ExpiresAt = rec.ReceivedAt.Add(callbackRetention)

	if _, err := col.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("error inserting callback record: %v", err)
	}
	return nil
}

// ListCallbacks returns the newest callbacks for an order first.
func (mdb *MongodbRepo) ListCallbacks(ctx context.Context, orderID string, limit int) ([]*CallbackRecord, error) {
	col, err := mdb.GetCollection(ctx, AuditDbName, CallbacksColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %v", err)
	}
	if limit <= 0 {
		limit = defaultHistorySize
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := col.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding callbacks: %v", err)
	}
	defer cursor.Close(ctx)

	var records []*CallbackRecord
	for cursor.Next(ctx) {
		var rec CallbackRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("error decoding callback record: %v", err)
		}
		records = append(records, &rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %v", err)
	}
	return records, nil
}
