package store

import (
	"context"
	"errors"

	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore implements Store on one DynamoDB table. Secondary indexes are
// maintained by DynamoDB.
type DynamoStore struct {
	client DynamoAPI
	table  TableDefinition
}

// NewDynamoStore binds a client to a table.
func NewDynamoStore(client DynamoAPI, table TableDefinition) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) key(key Key) Item {
	return Item{
		AttrPK: stringValue(key.PK),
		AttrSK: stringValue(key.SK),
	}
}

// Get reads one item by primary key.
func (s *DynamoStore) Get(ctx context.Context, key Key) (Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table.Name),
		Key:       s.key(key),
	})
	if err != nil {
		return nil, classifyError("get", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

// Put writes an item, replacing any item with the same key.
func (s *DynamoStore) Put(ctx context.Context, item Item) error {
	if _, err := KeyOf(item); err != nil {
		return appErrors.NewValidation(err.Error())
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table.Name),
		Item:      item,
	})
	if err != nil {
		return classifyError("put", err)
	}
	return nil
}

// Delete removes an item. Deleting a missing item is not an error.
func (s *DynamoStore) Delete(ctx context.Context, key Key) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table.Name),
		Key:       s.key(key),
	})
	if err != nil {
		return classifyError("delete", err)
	}
	return nil
}

// Query reads every page of a key-condition query.
func (s *DynamoStore) Query(ctx context.Context, cond KeyCondition, scanForward bool) ([]Item, error) {
	partitionAttr := cond.PartitionAttr
	if cond.Index != "" {
		idx, ok := s.table.Index(cond.Index)
		if !ok {
			return nil, appErrors.NewInternal("unknown index "+cond.Index, nil)
		}
		if partitionAttr == "" {
			partitionAttr = idx.PartitionAttr
		}
	}
	if partitionAttr == "" {
		partitionAttr = AttrPK
	}

	keyCond := expression.Key(partitionAttr).Equal(expression.Value(cond.PartitionValue))
	if cond.SortAttr != "" && cond.SortPrefix != "" {
		keyCond = keyCond.And(expression.Key(cond.SortAttr).BeginsWith(cond.SortPrefix))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, appErrors.NewInternal("failed to build key condition", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(scanForward),
	}
	if cond.Index != "" {
		input.IndexName = aws.String(cond.Index)
	}

	var items []Item
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyError("query", err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

var throttlingCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
}

// classifyError converts an SDK failure into a StorageError. Throttling is
// tagged so callers and dashboards can tell it apart.
func classifyError(operation string, err error) error {
	storageErr := appErrors.NewStorage(operation, err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if throttlingCodes[apiErr.ErrorCode()] {
			return storageErr.WithCode("THROTTLED")
		}
		return storageErr.WithCode("STORE_FAILURE").
			WithDetails(map[string]interface{}{"aws_error_code": apiErr.ErrorCode()})
	}
	return storageErr.WithCode("STORE_FAILURE")
}
