package delivery

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/drone"
	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/order"
)

var (
	// ErrDroneChanged is returned when the drone left the loading state, or
	// lost battery, between admission and the conditional update.
	ErrDroneChanged = errors.New("delivery: drone no longer admits orders")
	// ErrOrderSettled is returned when the order is no longer pending.
	ErrOrderSettled = errors.New("delivery: order is no longer pending")
)

type Repository interface {
	CreateOrder(ctx context.Context, db *sqlx.DB, o *order.Order, lines []*order.Line, minBattery int) (*drone.Drone, error)
	SettleOrder(ctx context.Context, db *sqlx.DB, orderID, droneID uuid.UUID) (*order.Order, error)
}

type repo struct {
	orderRepo order.Repository
	lineRepo  order.LineRepository
	droneRepo drone.Repository
}

func NewRepository(orderRepo order.Repository, lineRepo order.LineRepository, droneRepo drone.Repository) Repository {
	return &repo{orderRepo: orderRepo, lineRepo: lineRepo, droneRepo: droneRepo}
}

// --------------------------------------------------------------
// CreateOrder inserts the order and its lines and moves the drone from
// loading to loaded, all in one transaction.
func (r *repo) CreateOrder(ctx context.Context, db *sqlx.DB, o *order.Order, lines []*order.Line, minBattery int) (*drone.Drone, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domainerrors.NewInternal("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := r.orderRepo.Create(ctx, tx, o); err != nil {
		return nil, domainerrors.NewInternal("failed to create order", err)
	}

	if err := r.lineRepo.CreateMany(ctx, tx, lines); err != nil {
		return nil, domainerrors.NewInternal("failed to create order lines", err)
	}

	d, err := r.droneRepo.Transition(ctx, tx, o.DroneID, drone.StateLoading, drone.StateLoaded, minBattery)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDroneChanged
	}
	if err != nil {
		return nil, domainerrors.NewInternal("failed to load drone", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domainerrors.NewInternal("failed to commit transaction", err)
	}
	return d, nil
}

// --------------------------------------------------------------
// SettleOrder marks a pending order successful and its drone delivered in one
// transaction. The drone is moved regardless of its current state.
func (r *repo) SettleOrder(ctx context.Context, db *sqlx.DB, orderID, droneID uuid.UUID) (*order.Order, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, domainerrors.NewInternal("failed to begin transaction", err)
	}
	defer tx.Rollback()

	o, err := r.orderRepo.UpdateStatus(ctx, tx, orderID, order.StatusPending, order.StatusSuccessful)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderSettled
	}
	if err != nil {
		return nil, domainerrors.NewInternal("failed to settle order", err)
	}

	if _, err := r.droneRepo.SetState(ctx, tx, droneID, drone.StateDelivered); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.DroneNotFound()
		}
		return nil, domainerrors.NewInternal("failed to mark drone delivered", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domainerrors.NewInternal("failed to commit transaction", err)
	}
	return o, nil
}
