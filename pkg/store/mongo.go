package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"podscraper/pkg/domain"
)

const (
	mongoDatabase   = "podscraper"
	mongoCollection = "episodes"
)

// MongoStore persists episodes in MongoDB. The guid field carries a unique
// index so the upsert filter is the dedup key, mirroring the SQL backends.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongo connects to MongoDB with the given connection string and ensures
// the guid index exists.
func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := client.Database(mongoDatabase).Collection(mongoCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guid", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure guid index: %w", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// Upsert inserts or overwrites the episode document for ep.GUID.
func (s *MongoStore) Upsert(ctx context.Context, ep *domain.Episode) error {
	ep.ScrapedAt = time.Now().UTC().Truncate(time.Second)
	ep.WordCount = domain.CountWords(ep.Transcript)

	filter := bson.M{"guid": ep.GUID}
	update := bson.M{"$set": ep}
	opts := options.Update().SetUpsert(true)

	if _, err := s.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upsert episode %s: %w", ep.GUID, err)
	}
	return nil
}

// Exists reports whether an episode with the given guid is stored.
func (s *MongoStore) Exists(ctx context.Context, guid string) (bool, error) {
	err := s.collection.FindOne(ctx, bson.M{"guid": guid},
		options.FindOne().SetProjection(bson.M{"guid": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check episode %s: %w", guid, err)
	}
	return true, nil
}

// Query returns episodes scraped within the window, ordered by published
// timestamp descending. Documents without a published_at field sort last
// under a descending sort, matching the SQL backends.
func (s *MongoStore) Query(ctx context.Context, feedNames []string, since time.Time) ([]domain.Episode, error) {
	filter := bson.M{"scraped_at": bson.M{"$gte": since.UTC()}}
	if len(feedNames) > 0 {
		filter["feed_name"] = bson.M{"$in": feedNames}
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "published_at", Value: -1},
		{Key: "scraped_at", Value: -1},
	})

	return s.find(ctx, filter, opts)
}

// ListRecent returns metadata for the most recently scraped episodes without
// transcript bodies.
func (s *MongoStore) ListRecent(ctx context.Context, limit int) ([]domain.Episode, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "scraped_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"transcript": 0})

	return s.find(ctx, bson.M{}, opts)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Episode, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer cursor.Close(ctx)

	episodes := make([]domain.Episode, 0)
	for cursor.Next(ctx) {
		var ep domain.Episode
		if err := cursor.Decode(&ep); err != nil {
			return nil, fmt.Errorf("decode episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return episodes, nil
}
