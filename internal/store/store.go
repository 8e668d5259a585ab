// Package store is the key-value adapter the repositories talk to. Items are
// DynamoDB attribute maps addressed by (PK, SK) with secondary indexes keyed
// by a foreign attribute.
//
// Two implementations exist: DynamoStore for AWS and BadgerStore, an
// embedded store that maintains the same indexes itself for local runs and
// tests.
package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a stored record.
type Item = map[string]types.AttributeValue

const (
	AttrPK = "PK"
	AttrSK = "SK"
)

// Key is the primary address of an item.
type Key struct {
	PK string
	SK string
}

// KeyCondition selects items of one index partition, optionally narrowed by
// a sort key prefix. An empty Index queries the base table by PK.
type KeyCondition struct {
	Index          string
	PartitionAttr  string
	PartitionValue string
	SortAttr       string
	SortPrefix     string
}

// IndexDefinition describes a secondary index. Both key attributes are
// strings.
type IndexDefinition struct {
	Name          string
	PartitionAttr string
	SortAttr      string
}

// TableDefinition names a table and its indexes.
type TableDefinition struct {
	Name    string
	Indexes []IndexDefinition
}

// Index looks up an index definition by name.
func (t TableDefinition) Index(name string) (IndexDefinition, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDefinition{}, false
}

// Store is the contract shared by all backends. Get returns (nil, nil) when
// the item does not exist. Query returns every matching item, following
// pagination internally.
type Store interface {
	Get(ctx context.Context, key Key) (Item, error)
	Put(ctx context.Context, item Item) error
	Delete(ctx context.Context, key Key) error
	Query(ctx context.Context, cond KeyCondition, scanForward bool) ([]Item, error)
}

// KeyOf extracts the primary key from an item.
func KeyOf(item Item) (Key, error) {
	pk, ok := item[AttrPK].(*types.AttributeValueMemberS)
	if !ok || pk.Value == "" {
		return Key{}, fmt.Errorf("item has no string %s attribute", AttrPK)
	}
	sk, ok := item[AttrSK].(*types.AttributeValueMemberS)
	if !ok || sk.Value == "" {
		return Key{}, fmt.Errorf("item has no string %s attribute", AttrSK)
	}
	return Key{PK: pk.Value, SK: sk.Value}, nil
}

// StringAttr returns the string value of attr, if present.
func StringAttr(item Item, attr string) (string, bool) {
	v, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return v.Value, true
}
