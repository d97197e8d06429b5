package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anatolykoptev/go_book/internal/book"
)

const (
	booksCollection  = "books"
	errorsCollection = "processing_errors"
)

// Mongo stores documents in a collection with a unique index on the
// source video id and a weighted text index for search.
type Mongo struct {
	client *mongo.Client
	books  *mongo.Collection
	errs   *mongo.Collection
}

// OpenMongo connects, pings and ensures indexes.
func OpenMongo(ctx context.Context, uri, database string, log *slog.Logger) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	db := client.Database(database)
	s := &Mongo{
		client: client,
		books:  db.Collection(booksCollection),
		errs:   db.Collection(errorsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	if log != nil {
		log.Info("mongo store connected", slog.String("database", database))
	}
	return s, nil
}

func (s *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := s.books.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "source_video.id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("source_video_id_unique"),
		},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "summary", Value: "text"},
				{Key: "key_themes", Value: "text"},
				{Key: "tags", Value: "text"},
				{Key: "chapters.content", Value: "text"},
			},
			Options: options.Index().SetName("books_text").SetWeights(bson.D{
				{Key: "title", Value: 3},
				{Key: "summary", Value: 2},
				{Key: "key_themes", Value: 1},
				{Key: "tags", Value: 1},
				{Key: "chapters.content", Value: 1},
			}),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo: create book indexes: %w", err)
	}
	_, err = s.errs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "video_url", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: create error indexes: %w", err)
	}
	return nil
}

func (s *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Mongo) Insert(ctx context.Context, doc *book.Document) (string, error) {
	doc.ID = newID()
	if _, err := s.books.InsertOne(ctx, doc); err != nil {
		doc.ID = ""
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("mongo: insert book: %w", err)
	}
	return doc.ID, nil
}

func (s *Mongo) findOne(ctx context.Context, filter bson.M) (*book.Document, error) {
	var d book.Document
	err := s.books.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find book: %w", err)
	}
	return &d, nil
}

func (s *Mongo) FindByID(ctx context.Context, id string) (*book.Document, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Mongo) FindBySourceVideoID(ctx context.Context, videoID string) (*book.Document, error) {
	return s.findOne(ctx, bson.M{"source_video.id": videoID})
}

type scoredDocument struct {
	book.Document `bson:",inline"`
	Score         float64 `bson:"score"`
}

func (s *Mongo) Search(ctx context.Context, q book.Query) ([]book.Summary, error) {
	q = q.Normalize()
	filter := bson.M{}
	if q.Difficulty != "" {
		filter["difficulty_level"] = q.Difficulty
	}
	opts := options.Find().SetSkip(int64(q.Skip)).SetLimit(int64(q.Limit))
	if q.Text != "" {
		filter["$text"] = bson.M{"$search": q.Text}
		score := bson.M{"$meta": "textScore"}
		opts.SetProjection(bson.M{"score": score})
		opts.SetSort(bson.D{{Key: "score", Value: score}, {Key: "created_at", Value: -1}})
	} else {
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	}

	cur, err := s.books.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: search: %w", err)
	}
	defer cur.Close(ctx)

	out := []book.Summary{}
	for cur.Next(ctx) {
		var d scoredDocument
		if err := cur.Decode(&d); err != nil {
			continue
		}
		sum := d.Document.Summarize()
		sum.Score = d.Score
		out = append(out, sum)
	}
	return out, cur.Err()
}

func (s *Mongo) Update(ctx context.Context, id string, p book.Patch, now time.Time) (*book.Document, error) {
	d, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Apply(p, now)
	res, err := s.books.ReplaceOne(ctx, bson.M{"_id": id}, d)
	if err != nil {
		return nil, fmt.Errorf("mongo: update book: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return d, nil
}

func (s *Mongo) Delete(ctx context.Context, id string) error {
	res, err := s.books.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: delete book: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) InsertError(ctx context.Context, rec *book.ErrorRecord) (string, error) {
	rec.ID = newID()
	if _, err := s.errs.InsertOne(ctx, rec); err != nil {
		return "", fmt.Errorf("mongo: insert error record: %w", err)
	}
	return rec.ID, nil
}

func (s *Mongo) ListErrors(ctx context.Context, videoURL string, limit int) ([]book.ErrorRecord, error) {
	filter := bson.M{}
	if videoURL != "" {
		filter["video_url"] = videoURL
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(errorLimit(limit)))
	cur, err := s.errs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list errors: %w", err)
	}
	defer cur.Close(ctx)

	out := []book.ErrorRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo: decode errors: %w", err)
	}
	return out, nil
}
