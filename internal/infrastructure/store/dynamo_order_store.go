package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/gallery-delivery/internal/domain/order"
)

// DynamoOrderStore persists order records in DynamoDB.
// Partition key: gallery_id, sort key: order_id. Record modifications are
// streamed to the observer via the table's stream.
type DynamoOrderStore struct {
	client    *dynamodb.Client
	tableName string
}

// dynamoOrder is the DynamoDB item shape of an order record.
type dynamoOrder struct {
	GalleryID               string   `dynamodbav:"gallery_id"`
	OrderID                 string   `dynamodbav:"order_id"`
	DeliveryStatus          string   `dynamodbav:"delivery_status"`
	SelectedKeys            []string `dynamodbav:"selected_keys"`
	ChangeRequestsBlocked   bool     `dynamodbav:"change_requests_blocked"`
	FinalZipGenerating      bool     `dynamodbav:"final_zip_generating,omitempty"`
	FinalZipGeneratingSince string   `dynamodbav:"final_zip_generating_since,omitempty"`
	DeliveredAt             string   `dynamodbav:"delivered_at,omitempty"`
	CreatedAt               string   `dynamodbav:"created_at"`
	UpdatedAt               string   `dynamodbav:"updated_at"`
}

func NewDynamoOrderStore(client *dynamodb.Client, tableName string) *DynamoOrderStore {
	return &DynamoOrderStore{
		client:    client,
		tableName: tableName,
	}
}

func orderKey(galleryID, orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"gallery_id": &types.AttributeValueMemberS{Value: galleryID},
		"order_id":   &types.AttributeValueMemberS{Value: orderID},
	}
}

// Get returns the order or order.ErrOrderNotFound.
func (s *DynamoOrderStore) Get(ctx context.Context, galleryID, orderID string) (*order.Order, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       orderKey(galleryID, orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if result.Item == nil {
		return nil, order.ErrOrderNotFound
	}

	var item dynamoOrder
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}

	return item.toOrder(), nil
}

// ConditionalUpdate sets fields in one UpdateItem guarded by the expected
// delivery status. The guard flag is never visible without its status write.
func (s *DynamoOrderStore) ConditionalUpdate(ctx context.Context, galleryID, orderID string, fields order.Update, expectedStatus order.Status) error {
	updatedAt := fields.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	expr := "SET delivery_status = :status, updated_at = :updated"
	values := map[string]types.AttributeValue{
		":status":   &types.AttributeValueMemberS{Value: string(fields.DeliveryStatus)},
		":updated":  &types.AttributeValueMemberS{Value: updatedAt.Format(time.RFC3339Nano)},
		":expected": &types.AttributeValueMemberS{Value: string(expectedStatus)},
	}

	if fields.DeliveredAt != nil {
		expr += ", delivered_at = :delivered"
		values[":delivered"] = &types.AttributeValueMemberS{Value: fields.DeliveredAt.Format(time.RFC3339Nano)}
	}
	if fields.FinalZipGenerating != nil {
		expr += ", final_zip_generating = :zipflag"
		values[":zipflag"] = &types.AttributeValueMemberBOOL{Value: *fields.FinalZipGenerating}
	}
	if fields.FinalZipGeneratingSince != nil {
		expr += ", final_zip_generating_since = :zipsince"
		values[":zipsince"] = &types.AttributeValueMemberS{Value: fields.FinalZipGeneratingSince.Format(time.RFC3339Nano)}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       orderKey(galleryID, orderID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("delivery_status = :expected"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConditionFailed
		}
		return fmt.Errorf("failed to update order: %w", err)
	}

	return nil
}

// Query returns all orders of a gallery, ordered by order_id.
func (s *DynamoOrderStore) Query(ctx context.Context, galleryID string) ([]order.Order, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("gallery_id = :gid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gid": &types.AttributeValueMemberS{Value: galleryID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := make([]order.Order, 0, len(result.Items))
	for _, raw := range result.Items {
		var item dynamoOrder
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		orders = append(orders, *item.toOrder())
	}

	return orders, nil
}

// ClearFinalizeFlag removes the guard flag and its timestamp. Unconditional:
// there is no ownership token on the flag.
func (s *DynamoOrderStore) ClearFinalizeFlag(ctx context.Context, galleryID, orderID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              orderKey(galleryID, orderID),
		UpdateExpression: aws.String("REMOVE final_zip_generating, final_zip_generating_since SET updated_at = :updated"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":updated": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to clear finalize flag: %w", err)
	}
	return nil
}

func (d *dynamoOrder) toOrder() *order.Order {
	o := &order.Order{
		GalleryID:             d.GalleryID,
		OrderID:               d.OrderID,
		DeliveryStatus:        order.Status(d.DeliveryStatus),
		SelectedKeys:          d.SelectedKeys,
		ChangeRequestsBlocked: d.ChangeRequestsBlocked,
		FinalZipGenerating:    d.FinalZipGenerating,
	}
	if t, err := time.Parse(time.RFC3339Nano, d.CreatedAt); err == nil {
		o.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, d.UpdatedAt); err == nil {
		o.UpdatedAt = t
	}
	if d.FinalZipGeneratingSince != "" {
		if t, err := time.Parse(time.RFC3339Nano, d.FinalZipGeneratingSince); err == nil {
			o.FinalZipGeneratingSince = &t
		}
	}
	if d.DeliveredAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, d.DeliveredAt); err == nil {
			o.DeliveredAt = &t
		}
	}
	return o
}
