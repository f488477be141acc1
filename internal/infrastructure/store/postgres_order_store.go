package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/gallery-delivery/internal/domain/order"
)

// PostgresOrderStore persists order records in PostgreSQL. Used for local
// development; production runs on DynamoDB.
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

// ConnectPostgres opens and pings a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const orderColumns = `gallery_id, order_id, delivery_status, selected_keys, change_requests_blocked,
	final_zip_generating, final_zip_generating_since, delivered_at, created_at, updated_at`

// Get returns the order or order.ErrOrderNotFound.
func (s *PostgresOrderStore) Get(ctx context.Context, galleryID, orderID string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE gallery_id = $1 AND order_id = $2`,
		galleryID, orderID,
	)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// ConditionalUpdate applies fields in one UPDATE guarded by the expected
// delivery status. Zero rows affected means the status moved concurrently.
func (s *PostgresOrderStore) ConditionalUpdate(ctx context.Context, galleryID, orderID string, fields order.Update, expectedStatus order.Status) error {
	updatedAt := fields.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `UPDATE orders SET delivery_status = $1, updated_at = $2`
	args := []any{string(fields.DeliveryStatus), updatedAt}
	idx := 3

	if fields.DeliveredAt != nil {
		query += fmt.Sprintf(", delivered_at = $%d", idx)
		args = append(args, *fields.DeliveredAt)
		idx++
	}
	if fields.FinalZipGenerating != nil {
		query += fmt.Sprintf(", final_zip_generating = $%d", idx)
		args = append(args, *fields.FinalZipGenerating)
		idx++
	}
	if fields.FinalZipGeneratingSince != nil {
		query += fmt.Sprintf(", final_zip_generating_since = $%d", idx)
		args = append(args, *fields.FinalZipGeneratingSince)
		idx++
	}

	query += fmt.Sprintf(" WHERE gallery_id = $%d AND order_id = $%d AND delivery_status = $%d", idx, idx+1, idx+2)
	args = append(args, galleryID, orderID, string(expectedStatus))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a concurrent status change.
		if _, err := s.Get(ctx, galleryID, orderID); err != nil {
			return err
		}
		return ErrConditionFailed
	}

	return nil
}

// Query returns all orders of a gallery, ordered by order_id.
func (s *PostgresOrderStore) Query(ctx context.Context, galleryID string) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE gallery_id = $1 ORDER BY order_id ASC`,
		galleryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// ClearFinalizeFlag unconditionally nulls the guard flag and its timestamp.
func (s *PostgresOrderStore) ClearFinalizeFlag(ctx context.Context, galleryID, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET final_zip_generating = FALSE, final_zip_generating_since = NULL, updated_at = $3
		 WHERE gallery_id = $1 AND order_id = $2`,
		galleryID, orderID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to clear finalize flag: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o           order.Order
		status      string
		keysJSON    []byte
		zipGen      sql.NullBool
		zipSince    sql.NullTime
		deliveredAt sql.NullTime
	)

	err := row.Scan(
		&o.GalleryID, &o.OrderID, &status, &keysJSON, &o.ChangeRequestsBlocked,
		&zipGen, &zipSince, &deliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.DeliveryStatus = order.Status(status)
	if len(keysJSON) > 0 {
		if err := json.Unmarshal(keysJSON, &o.SelectedKeys); err != nil {
			return nil, fmt.Errorf("failed to unmarshal selected keys: %w", err)
		}
	}
	o.FinalZipGenerating = zipGen.Valid && zipGen.Bool
	if zipSince.Valid {
		t := zipSince.Time
		o.FinalZipGeneratingSince = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}

	return &o, nil
}
