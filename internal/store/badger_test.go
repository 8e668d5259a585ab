package store

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTable = TableDefinition{
	Name: "documents",
	Indexes: []IndexDefinition{
		{Name: "UserIndex", PartitionAttr: "user_id", SortAttr: "created_at"},
		{Name: "SubjectIndex", PartitionAttr: "subject_id", SortAttr: "created_at"},
	},
}

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := OpenBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.Table(testTable)
}

func docItem(subjectID, docID, userID, createdAt string) Item {
	return Item{
		AttrPK:       stringValue("SUBJECT#" + subjectID),
		AttrSK:       stringValue("DOCUMENT#" + docID),
		"document_id": stringValue(docID),
		"subject_id":  stringValue(subjectID),
		"user_id":     stringValue(userID),
		"created_at":  stringValue(createdAt),
		"pages":       &types.AttributeValueMemberN{Value: "1"},
	}
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		id, _ := StringAttr(item, "document_id")
		out = append(out, id)
	}
	return out
}

func TestBadgerStoreGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := Key{PK: "SUBJECT#s1", SK: "DOCUMENT#d1"}

	item, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, item)

	require.NoError(t, s.Put(ctx, docItem("s1", "d1", "u1", "2025-01-01T00:00:00.000000Z")))

	item, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, item)
	title, ok := StringAttr(item, "document_id")
	assert.True(t, ok)
	assert.Equal(t, "d1", title)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, item["pages"])

	require.NoError(t, s.Delete(ctx, key))
	item, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, item)

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		assert.NoError(t, s.Delete(ctx, key))
	})

	t.Run("PutWithoutKeyFails", func(t *testing.T) {
		err := s.Put(ctx, Item{"user_id": stringValue("u1")})
		assert.Error(t, err)
	})
}

func TestBadgerStoreIndexQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, docItem("s1", "d1", "u1", "2025-01-01T00:00:00.000000Z")))
	require.NoError(t, s.Put(ctx, docItem("s1", "d2", "u1", "2025-01-02T00:00:00.000000Z")))
	require.NoError(t, s.Put(ctx, docItem("s2", "d3", "u1", "2025-01-03T00:00:00.000000Z")))
	require.NoError(t, s.Put(ctx, docItem("s3", "d4", "u2", "2025-01-04T00:00:00.000000Z")))

	t.Run("NewestFirst", func(t *testing.T) {
		items, err := s.Query(ctx, KeyCondition{Index: "UserIndex", PartitionValue: "u1"}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"d3", "d2", "d1"}, ids(items))
	})

	t.Run("OldestFirst", func(t *testing.T) {
		items, err := s.Query(ctx, KeyCondition{Index: "UserIndex", PartitionValue: "u1"}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1", "d2", "d3"}, ids(items))
	})

	t.Run("SubjectIndex", func(t *testing.T) {
		items, err := s.Query(ctx, KeyCondition{Index: "SubjectIndex", PartitionValue: "s1"}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"d2", "d1"}, ids(items))
	})

	t.Run("SortPrefix", func(t *testing.T) {
		items, err := s.Query(ctx, KeyCondition{
			Index:          "UserIndex",
			PartitionValue: "u1",
			SortAttr:       "created_at",
			SortPrefix:     "2025-01-02",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"d2"}, ids(items))
	})

	t.Run("BaseTablePartition", func(t *testing.T) {
		items, err := s.Query(ctx, KeyCondition{PartitionValue: "SUBJECT#s1", SortPrefix: "DOCUMENT#"}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1", "d2"}, ids(items))
	})

	t.Run("PartitionPrefixDoesNotLeak", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, docItem("s10", "d5", "u10", "2025-01-05T00:00:00.000000Z")))
		items, err := s.Query(ctx, KeyCondition{Index: "SubjectIndex", PartitionValue: "s1"}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1", "d2"}, ids(items))
	})

	t.Run("UnknownIndex", func(t *testing.T) {
		_, err := s.Query(ctx, KeyCondition{Index: "NameIndex", PartitionValue: "u1"}, true)
		assert.Error(t, err)
	})
}

func TestBadgerStoreIndexMaintenance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, docItem("s1", "d1", "u1", "2025-01-01T00:00:00.000000Z")))

	t.Run("MovingIndexAttributeRemovesOldEntry", func(t *testing.T) {
		moved := docItem("s1", "d1", "u2", "2025-01-01T00:00:00.000000Z")
		require.NoError(t, s.Put(ctx, moved))

		items, err := s.Query(ctx, KeyCondition{Index: "UserIndex", PartitionValue: "u1"}, true)
		require.NoError(t, err)
		assert.Empty(t, items)

		items, err = s.Query(ctx, KeyCondition{Index: "UserIndex", PartitionValue: "u2"}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1"}, ids(items))
	})

	t.Run("OverwriteKeepsSingleEntry", func(t *testing.T) {
		updated := docItem("s1", "d1", "u2", "2025-01-01T00:00:00.000000Z")
		updated["pages"] = &types.AttributeValueMemberN{Value: "4"}
		require.NoError(t, s.Put(ctx, updated))

		items, err := s.Query(ctx, KeyCondition{Index: "SubjectIndex", PartitionValue: "s1"}, true)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, &types.AttributeValueMemberN{Value: "4"}, items[0]["pages"])
	})

	t.Run("SparseIndex", func(t *testing.T) {
		noUser := docItem("s1", "d9", "", "2025-01-09T00:00:00.000000Z")
		delete(noUser, "user_id")
		require.NoError(t, s.Put(ctx, noUser))

		items, err := s.Query(ctx, KeyCondition{Index: "SubjectIndex", PartitionValue: "s1"}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1", "d9"}, ids(items))
	})

	t.Run("DeleteRemovesIndexEntries", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, Key{PK: "SUBJECT#s1", SK: "DOCUMENT#d1"}))
		items, err := s.Query(ctx, KeyCondition{Index: "UserIndex", PartitionValue: "u2"}, true)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestEscapeComponent(t *testing.T) {
	assert.Equal(t, []byte("plain"), escapeComponent("plain"))
	assert.Equal(t, []byte{'a', 0x01, 0x01, 'b', 0x01, 0x02}, escapeComponent("a\x00b\x01"))

	// A separator inside a component must not let one partition prefix
	// match another partition.
	p := indexPartitionPrefix("t", "i", "a", "")
	k := indexKey("t", IndexDefinition{Name: "i"}, "a\x00b", "", Key{PK: "x", SK: "y"})
	assert.NotEqual(t, p, k[:len(p)])
}

func TestSerializeRoundTrip(t *testing.T) {
	item := Item{
		AttrPK: stringValue("USER#u1"),
		AttrSK: stringValue("SUBJECT#s1"),
		"nested": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"flag": &types.AttributeValueMemberBOOL{Value: true},
			"list": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberN{Value: "3"},
				&types.AttributeValueMemberNULL{Value: true},
			}},
		}},
		"tags": &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
	}

	data, err := serializeItem(item)
	require.NoError(t, err)
	decoded, err := deserializeItem(data)
	require.NoError(t, err)
	assert.Equal(t, item, decoded)
}
