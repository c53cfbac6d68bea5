// Package mongo adapts a MongoDB collection to the document loader.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/okian/nbaetl/internal/domain/load/document"
)

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*driver.Client, error) {
	client, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %w", ErrConnect, err)
	}
	return client, nil
}

// Collection implements document.Collection.
type Collection struct {
	c *driver.Collection
}

var _ document.Collection = (*Collection)(nil)

// New wraps the named collection of db.
func New(db *driver.Database, name string) *Collection {
	return &Collection{c: db.Collection(name)}
}

func (c *Collection) Name() string { return c.c.Name() }

// DuplicateGroups groups documents by key and returns the _id lists of every
// group with more than one member.
func (c *Collection) DuplicateGroups(ctx context.Context, key string) ([][]any, error) {
	pipeline := driver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: key, Value: bson.D{{Key: "$ne", Value: nil}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + key},
			{Key: "ids", Value: bson.D{{Key: "$push", Value: "$_id"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
	}
	cur, err := c.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s: aggregate: %w", c.Name(), err)
	}
	var groups []struct {
		IDs []any `bson:"ids"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("%s: decode groups: %w", c.Name(), err)
	}
	out := make([][]any, len(groups))
	for i, g := range groups {
		out[i] = g.IDs
	}
	return out, nil
}

// DeleteInternal removes documents by _id.
func (c *Collection) DeleteInternal(ctx context.Context, ids []any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := c.c.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return 0, fmt.Errorf("%s: delete: %w", c.Name(), err)
	}
	return res.DeletedCount, nil
}

// EnsureUniqueIndex creates a unique ascending index on key.
func (c *Collection) EnsureUniqueIndex(ctx context.Context, key string) error {
	_, err := c.c.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys:    bson.D{{Key: key, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%s: unique index on %s: %w", c.Name(), key, err)
	}
	return nil
}

// BulkUpsert sets every document by key in one unordered batch.
func (c *Collection) BulkUpsert(ctx context.Context, key string, docs []document.Doc) (document.UpsertResult, error) {
	if len(docs) == 0 {
		return document.UpsertResult{}, nil
	}
	models := make([]driver.WriteModel, 0, len(docs))
	for _, d := range docs {
		models = append(models, driver.NewUpdateOneModel().
			SetFilter(bson.D{{Key: key, Value: d[key]}}).
			SetUpdate(bson.D{{Key: "$set", Value: d}}).
			SetUpsert(true))
	}

	res, err := c.c.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	var out document.UpsertResult
	if res != nil {
		out = document.UpsertResult{
			Matched:  res.MatchedCount,
			Modified: res.ModifiedCount,
			Upserted: res.UpsertedCount,
		}
	}
	if err == nil {
		return out, nil
	}

	var bwe driver.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 && bwe.WriteConcernError == nil {
		out.WriteErrors = len(bwe.WriteErrors)
		return out, fmt.Errorf("%w: %s: %d of %d rejected: %s",
			document.ErrBulkPartial, c.Name(), out.WriteErrors, len(docs), bwe.WriteErrors[0].Message)
	}
	return out, fmt.Errorf("%s: bulk write: %w", c.Name(), err)
}
