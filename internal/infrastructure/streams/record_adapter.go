package streams

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/example/gallery-delivery/internal/domain/order"
)

// OrderChange is one observed modification of an order record: the record
// images before and after the write. Old is nil for inserts.
type OrderChange struct {
	Old *order.Order
	New *order.Order
}

// ConvertFromKinesisRecord converts a Kinesis record (DynamoDB Streams format)
// to an OrderChange. The orders table streams to Kinesis via the DynamoDB
// Kinesis integration, which wraps records in DynamoDB Streams format.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*OrderChange, error) {
	var dynamoDBRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &dynamoDBRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}

	return ConvertFromDynamoDBStreamRecord(dynamoDBRecord)
}

// ConvertFromDynamoDBStreamRecord converts a DynamoDB Stream record to an
// OrderChange. REMOVE events carry no new image and yield nil.
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*OrderChange, error) {
	if record.EventName != "INSERT" && record.EventName != "MODIFY" {
		return nil, nil
	}

	newOrder, err := convertOrderImage(record.Change.NewImage)
	if err != nil {
		return nil, err
	}

	change := &OrderChange{New: newOrder}
	if record.EventName == "MODIFY" {
		oldOrder, err := convertOrderImage(record.Change.OldImage)
		if err != nil {
			return nil, err
		}
		change.Old = oldOrder
	}

	return change, nil
}

// convertOrderImage extracts an order record from DynamoDB attribute values.
func convertOrderImage(image map[string]events.DynamoDBAttributeValue) (*order.Order, error) {
	if image == nil {
		return nil, fmt.Errorf("DynamoDB image is nil")
	}

	o := &order.Order{}

	if v, ok := image["gallery_id"]; ok {
		o.GalleryID = v.String()
	}
	if v, ok := image["order_id"]; ok {
		o.OrderID = v.String()
	}
	if v, ok := image["delivery_status"]; ok {
		o.DeliveryStatus = order.Status(v.String())
	}
	if v, ok := image["change_requests_blocked"]; ok && v.DataType() == events.DataTypeBoolean {
		o.ChangeRequestsBlocked = v.Boolean()
	}
	if v, ok := image["final_zip_generating"]; ok && v.DataType() == events.DataTypeBoolean {
		o.FinalZipGenerating = v.Boolean()
	}
	if v, ok := image["final_zip_generating_since"]; ok && v.DataType() == events.DataTypeString {
		if t, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
			o.FinalZipGeneratingSince = &t
		}
	}
	if v, ok := image["delivered_at"]; ok && v.DataType() == events.DataTypeString {
		if t, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
			o.DeliveredAt = &t
		}
	}
	if v, ok := image["selected_keys"]; ok && v.DataType() == events.DataTypeList {
		for _, item := range v.List() {
			o.SelectedKeys = append(o.SelectedKeys, item.String())
		}
	}
	if v, ok := image["created_at"]; ok && v.DataType() == events.DataTypeString {
		if t, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
			o.CreatedAt = t
		}
	}
	if v, ok := image["updated_at"]; ok && v.DataType() == events.DataTypeString {
		if t, err := time.Parse(time.RFC3339Nano, v.String()); err == nil {
			o.UpdatedAt = t
		}
	}

	if o.GalleryID == "" || o.OrderID == "" {
		return nil, fmt.Errorf("missing required fields: gallery_id=%s, order_id=%s",
			o.GalleryID, o.OrderID)
	}

	return o, nil
}
