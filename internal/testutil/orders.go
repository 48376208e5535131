package testutil

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/common"
	"drone-dispatch/internal/order"
)

// OrderRepo is an in-memory order.Repository. Create stamps created_at from
// the clock so tests can age orders by moving it.
type OrderRepo struct {
	mu     sync.Mutex
	clock  common.Clock
	orders map[uuid.UUID]*order.Order
}

func NewOrderRepo(clock common.Clock) *OrderRepo {
	return &OrderRepo{clock: clock, orders: map[uuid.UUID]*order.Order{}}
}

// Put stores o as-is, timestamps included.
func (r *OrderRepo) Put(o *order.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
}

func (r *OrderRepo) Get(id uuid.UUID) *order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (r *OrderRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *OrderRepo) Create(_ context.Context, _ sqlx.ExtContext, o *order.Order) error {
	now := r.clock.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	r.Put(o)
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, _ sqlx.ExtContext, id uuid.UUID) (*order.Order, error) {
	if o := r.Get(id); o != nil {
		return o, nil
	}
	return nil, sql.ErrNoRows
}

func (r *OrderRepo) List(_ context.Context, _ sqlx.ExtContext, filter order.Query, q common.ListQuery) ([]*order.Order, int, error) {
	all := r.matching(func(o *order.Order) bool {
		if filter.Status != "" && o.Status != filter.Status {
			return false
		}
		if filter.DroneID != nil && o.DroneID != *filter.DroneID {
			return false
		}
		return true
	})
	return page(all, q)
}

func (r *OrderRepo) ListPendingBefore(_ context.Context, _ sqlx.ExtContext, cutoff time.Time) ([]*order.Order, error) {
	return r.matching(func(o *order.Order) bool {
		return o.Status == order.StatusPending && o.CreatedAt.Before(cutoff)
	}), nil
}

func (r *OrderRepo) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id uuid.UUID, from, to order.Status) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return nil, sql.ErrNoRows
	}
	o.Status = to
	o.UpdatedAt = r.clock.Now()
	cp := *o
	return &cp, nil
}

func (r *OrderRepo) matching(keep func(*order.Order) bool) []*order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for _, o := range r.orders {
		if keep(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// LineRepo is an in-memory order.LineRepository.
type LineRepo struct {
	mu    sync.Mutex
	lines []*order.Line
	// Err, when set, is returned from CreateMany.
	Err error
}

func NewLineRepo() *LineRepo {
	return &LineRepo{}
}

func (r *LineRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

func (r *LineRepo) CreateMany(_ context.Context, _ sqlx.ExtContext, lines []*order.Line) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range lines {
		cp := *l
		r.lines = append(r.lines, &cp)
	}
	return nil
}

func (r *LineRepo) ListByOrderID(_ context.Context, _ sqlx.ExtContext, orderID uuid.UUID) ([]*order.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Line
	for _, l := range r.lines {
		if l.OrderID == orderID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}
