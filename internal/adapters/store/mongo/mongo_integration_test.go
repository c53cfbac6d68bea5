//go:build integration

package mongo_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/okian/nbaetl/internal/adapters/store/mongo"
	"github.com/okian/nbaetl/internal/domain/load/document"
)

func startMongo(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	testcontainers.Logger = log.New(io.Discard, "", 0)

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(time.Minute),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "27017")
	require.NoError(t, err)
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

func TestCollection(t *testing.T) {
	ctx := context.Background()
	client, err := mongo.Connect(ctx, startMongo(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("nba_test")
	coll := mongo.New(db, document.PlayersCollection)
	raw := db.Collection(document.PlayersCollection)

	_, err = raw.InsertMany(ctx, []any{
		bson.M{"id": 1, "v": 1},
		bson.M{"id": 1, "v": 2},
		bson.M{"id": 2, "v": 1},
	})
	require.NoError(t, err)

	t.Run("unique index fails while duplicates exist", func(t *testing.T) {
		assert.Error(t, coll.EnsureUniqueIndex(ctx, "id"))
	})

	t.Run("dedupe keeps one document per id", func(t *testing.T) {
		removed, err := document.Dedupe(ctx, coll)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		n, err := raw.CountDocuments(ctx, bson.M{"id": 1})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = raw.CountDocuments(ctx, bson.M{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		removed, err = document.Dedupe(ctx, coll)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("documents without a usable id are never grouped", func(t *testing.T) {
		loose := db.Collection("loose")
		_, err := loose.InsertMany(ctx, []any{
			bson.M{"id": nil, "v": 1},
			bson.M{"id": nil, "v": 2},
			bson.M{"v": 3},
			bson.M{"id": 5, "v": 1},
			bson.M{"id": 5, "v": 2},
		})
		require.NoError(t, err)

		groups, err := mongo.New(db, "loose").DuplicateGroups(ctx, "id")
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Len(t, groups[0], 2)
	})

	t.Run("upserts are idempotent and last write wins", func(t *testing.T) {
		require.NoError(t, coll.EnsureUniqueIndex(ctx, "id"))

		docs := []document.Doc{{"id": int64(2), "v": 9}, {"id": int64(3), "v": 1}}
		res, err := coll.BulkUpsert(ctx, "id", docs)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Upserted)
		assert.Equal(t, int64(1), res.Modified)

		res, err = coll.BulkUpsert(ctx, "id", docs)
		require.NoError(t, err)
		assert.Zero(t, res.Upserted)
		assert.Zero(t, res.Modified)

		var got bson.M
		require.NoError(t, raw.FindOne(ctx, bson.M{"id": 2}).Decode(&got))
		assert.EqualValues(t, 9, got["v"])
		n, err := raw.CountDocuments(ctx, bson.M{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("rejected documents surface as a partial failure", func(t *testing.T) {
		var existing bson.M
		require.NoError(t, raw.FindOne(ctx, bson.M{"id": 3}).Decode(&existing))

		docs := []document.Doc{
			{"id": int64(3), "_id": "not-the-original"},
			{"id": int64(4), "v": 1},
		}
		res, err := coll.BulkUpsert(ctx, "id", docs)
		require.ErrorIs(t, err, document.ErrBulkPartial)
		assert.Equal(t, 1, res.WriteErrors)
		assert.Equal(t, int64(1), res.Upserted)
	})
}
