package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"approval-ledger/pkg/store"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Reserved document fields. They never leave this package.
const (
	idField      = "_id"
	createdField = "_createdAt"
)

// MongoStore maps each record collection onto a MongoDB collection of the
// same name, with the record id as _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	name   string
}

// Config holds MongoDB connection configuration.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// DefaultConfig returns default MongoDB configuration.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "approval_ledger",
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    50,
	}
}

// NewMongoStore connects, pings and ensures the owner index on the core collections.
func NewMongoStore(cfg Config, indexed ...string) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo: database is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w: %w", store.ErrUnavailable, err)
	}

	s := &MongoStore{client: client, db: client.Database(cfg.Database), name: "mongo"}

	for _, collection := range indexed {
		model := mongo.IndexModel{Keys: bson.D{{Key: "createdBy", Value: 1}}}
		if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to create index on %s: %w", collection, err)
		}
	}

	return s, nil
}

// Get returns one document.
func (s *MongoStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := store.ValidateKey(collection, id); err != nil {
		return nil, err
	}

	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{idField: id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}

	_, doc := fromBSON(raw)
	return doc, nil
}

// Query returns matching documents ordered by insertion time.
func (s *MongoStore) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error) {
	if err := store.ValidateCollection(collection); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: createdField, Value: 1}})
	cursor, err := s.db.Collection(collection).Find(ctx, buildFilter(filters), opts)
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]store.Record, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrInvalidDocument, err)
		}
		id, doc := fromBSON(raw)
		records = append(records, store.Record{ID: id, Data: doc})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// buildFilter matches numeric-looking string values against both their
// string and numeric stored forms, so "42" finds a createdBy stored as 42.
func buildFilter(filters []store.Filter) bson.M {
	filter := bson.M{}
	for _, f := range filters {
		s := fmt.Sprint(f.Value)
		alternatives := bson.A{s}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			alternatives = append(alternatives, n, float64(n))
		} else if x, err := strconv.ParseFloat(s, 64); err == nil {
			alternatives = append(alternatives, x)
		}
		filter[f.Field] = bson.M{"$in": alternatives}
	}
	return filter
}

// Insert replaces or creates the document with the given id.
func (s *MongoStore) Insert(ctx context.Context, collection, id string, doc store.Document) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if err := store.ValidateKey(collection, id); err != nil {
		return "", err
	}

	body := toBSON(doc)
	body[idField] = id
	body[createdField] = time.Now().UTC()

	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{idField: id}, body, opts); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}

	return id, nil
}

// Update applies fields with $set.
func (s *MongoStore) Update(ctx context.Context, collection, id string, fields store.Document) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}

	set := toBSON(fields)
	if len(set) == 0 {
		// $set with an empty document is rejected by the server
		_, err := s.Get(ctx, collection, id)
		return err
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{idField: id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}

	return nil
}

// Delete removes a document.
func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}

	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{idField: id}); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Name returns the backend name.
func (s *MongoStore) Name() string {
	return s.name
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toBSON(doc store.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		if k == idField || k == createdField {
			continue
		}
		out[k] = v
	}
	return out
}

func fromBSON(raw bson.M) (string, store.Document) {
	id := fmt.Sprint(raw[idField])
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		if k == idField || k == createdField {
			continue
		}
		doc[k] = v
	}
	return id, doc
}
