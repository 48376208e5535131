package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/common"
)

const (
	columns     = `id, drone_id, status, total_weight, created_at, updated_at`
	lineColumns = `id, order_id, medication_id, quantity, metadata, created_at, updated_at`
)

var orderableColumns = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"status":       true,
	"total_weight": true,
}

type Repository interface {
	Create(ctx context.Context, ext sqlx.ExtContext, o *Order) error
	GetByID(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID) (*Order, error)
	List(ctx context.Context, ext sqlx.ExtContext, filter Query, q common.ListQuery) ([]*Order, int, error)
	ListPendingBefore(ctx context.Context, ext sqlx.ExtContext, cutoff time.Time) ([]*Order, error)
	UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, from, to Status) (*Order, error)
}

type LineRepository interface {
	CreateMany(ctx context.Context, ext sqlx.ExtContext, lines []*Line) error
	ListByOrderID(ctx context.Context, ext sqlx.ExtContext, orderID uuid.UUID) ([]*Line, error)
}

type orderRepository struct{}

func NewOrderRepository() Repository {
	return &orderRepository{}
}

func (r *orderRepository) Create(ctx context.Context, ext sqlx.ExtContext, o *Order) error {
	query := fmt.Sprintf(`INSERT INTO orders (id, drone_id, status, total_weight)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, columns)
	return sqlx.GetContext(ctx, ext, o, query, o.ID, o.DroneID, o.Status, o.TotalWeight)
}

func (r *orderRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID) (*Order, error) {
	var o Order
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, columns)
	if err := sqlx.GetContext(ctx, ext, &o, query, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) List(ctx context.Context, ext sqlx.ExtContext, filter Query, q common.ListQuery) ([]*Order, int, error) {
	var where common.Where
	if filter.Status != "" {
		where.Add("status = $%d", filter.Status)
	}
	if filter.DroneID != nil {
		where.Add("drone_id = $%d", *filter.DroneID)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM orders%s%s`, columns, where.String(), q.OrderClause(orderableColumns))

	if q.NoPaginate {
		var orders []*Order
		if err := sqlx.SelectContext(ctx, ext, &orders, dataQuery, where.Args...); err != nil {
			return nil, 0, err
		}
		return orders, len(orders), nil
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM orders%s`, where.String())
	if err := sqlx.GetContext(ctx, ext, &total, countQuery, where.Args...); err != nil {
		return nil, 0, err
	}

	dataQuery += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, where.Next(), where.Next()+1)
	args := append(where.Args, q.Limit, q.Offset)

	var orders []*Order
	if err := sqlx.SelectContext(ctx, ext, &orders, dataQuery, args...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListPendingBefore returns pending orders created strictly before cutoff,
// oldest first.
func (r *orderRepository) ListPendingBefore(ctx context.Context, ext sqlx.ExtContext, cutoff time.Time) ([]*Order, error) {
	var orders []*Order
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE status = $1 AND created_at < $2 ORDER BY created_at`, columns)
	if err := sqlx.SelectContext(ctx, ext, &orders, query, StatusPending, cutoff); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves an order from one status to another. sql.ErrNoRows means
// the order is gone or no longer in from.
func (r *orderRepository) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, from, to Status) (*Order, error) {
	var o Order
	query := fmt.Sprintf(`UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s`, columns)
	if err := sqlx.GetContext(ctx, ext, &o, query, id, from, to); err != nil {
		return nil, err
	}
	return &o, nil
}

type lineRepository struct{}

func NewLineRepository() LineRepository {
	return &lineRepository{}
}

func (r *lineRepository) CreateMany(ctx context.Context, ext sqlx.ExtContext, lines []*Line) error {
	query := fmt.Sprintf(`INSERT INTO order_medications (id, order_id, medication_id, quantity, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, lineColumns)
	for _, l := range lines {
		if err := sqlx.GetContext(ctx, ext, l, query, l.ID, l.OrderID, l.MedicationID, l.Quantity, l.Metadata); err != nil {
			return fmt.Errorf("insert order line for medication %s: %w", l.MedicationID, err)
		}
	}
	return nil
}

func (r *lineRepository) ListByOrderID(ctx context.Context, ext sqlx.ExtContext, orderID uuid.UUID) ([]*Line, error) {
	var lines []*Line
	query := fmt.Sprintf(`SELECT %s FROM order_medications WHERE order_id = $1 ORDER BY created_at`, lineColumns)
	if err := sqlx.SelectContext(ctx, ext, &lines, query, orderID); err != nil {
		return nil, err
	}
	return lines, nil
}
