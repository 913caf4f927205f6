package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/appetiteclub/pos/services/kitchen/internal/audit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditCollection = "order_mutations"

type AuditRepo struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	logger     apt.Logger
	config     *apt.Config
}

func NewAuditRepo(config *apt.Config, logger apt.Logger) *AuditRepo {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &AuditRepo{
		logger: logger,
		config: config,
	}
}

func (r *AuditRepo) Start(ctx context.Context) error {
	mongoURL, _ := r.config.GetString("db.mongo.url")
	if mongoURL == "" {
		mongoURL = "mongodb://localhost:27017"
	}

	dbName, _ := r.config.GetString("db.mongo.name")
	if dbName == "" {
		dbName = "pos_kitchen"
	}

	clientOptions := options.Client().ApplyURI(mongoURL).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.db = client.Database(dbName)
	r.collection = r.db.Collection(auditCollection)

	orderIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "occurred_at", Value: -1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, orderIndexModel); err != nil {
		return fmt.Errorf("cannot create order_id index: %w", err)
	}

	occurredIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "occurred_at", Value: -1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, occurredIndexModel); err != nil {
		return fmt.Errorf("cannot create occurred_at index: %w", err)
	}

	r.logger.Infof("Connected to MongoDB: %s, database: %s, collection: %s", mongoURL, dbName, auditCollection)
	return nil
}

func (r *AuditRepo) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

func (r *AuditRepo) Save(ctx context.Context, e audit.Entry) error {
	if r.collection == nil {
		return fmt.Errorf("audit repo not started")
	}
	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("cannot insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepo) ListByOrder(ctx context.Context, orderID lifecycle.OrderID, limit int) ([]audit.Entry, error) {
	if r.collection == nil {
		return nil, fmt.Errorf("audit repo not started")
	}

	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}, {Key: "seq", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"order_id": int64(orderID)}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []audit.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("cannot decode audit entries: %w", err)
	}
	return entries, nil
}
