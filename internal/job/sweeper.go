package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"

	"drone-dispatch/config"
	"drone-dispatch/internal/delivery"
	"drone-dispatch/internal/drone"
	"drone-dispatch/internal/order"
)

// maxBatteryStep bounds the random battery change per tick: [0, maxBatteryStep).
const maxBatteryStep = 10

// Settler settles a single pending order.
type Settler interface {
	SettleOrder(ctx context.Context, o *order.Order) (*order.Order, error)
}

// Sweeper holds the four lifecycle sweeps. Every sweep re-runs its selection
// on each tick and processes candidates one at a time; a failure on one row
// is logged and the rest of the tick carries on.
type Sweeper struct {
	db          *sqlx.DB
	drones      drone.Repository
	orders      order.Repository
	settler     Settler
	settleAfter time.Duration
	resetAfter  time.Duration
	intn        func(n int) int
}

func NewSweeper(db *sqlx.DB, drones drone.Repository, orders order.Repository, settler Settler, fleet config.FleetConfig) *Sweeper {
	return &Sweeper{
		db:          db,
		drones:      drones,
		orders:      orders,
		settler:     settler,
		settleAfter: fleet.SettleAfter,
		resetAfter:  fleet.ResetAfter,
		intn:        rand.Intn,
	}
}

// WithRand replaces the source of battery steps. intn(n) must return a value
// in [0, n).
func (s *Sweeper) WithRand(intn func(n int) int) *Sweeper {
	s.intn = intn
	return s
}

// Jobs lists the sweeps with their schedules.
func (s *Sweeper) Jobs(cfg config.SchedulerConfig) []Job {
	return []Job{
		{Name: NameBatteryDrain, Spec: cfg.BatteryDrain, Run: s.DrainBatteries},
		{Name: NameBatteryCharge, Spec: cfg.BatteryCharge, Run: s.ChargeBatteries},
		{Name: NameSettleOrders, Spec: cfg.SettleOrders, Run: s.SettlePendingOrders},
		{Name: NameResetDelivered, Spec: cfg.ResetDelivered, Run: s.ResetDeliveredDrones},
	}
}

// DrainBatteries takes a random step off every busy drone that still has
// charge, never going below zero.
func (s *Sweeper) DrainBatteries(ctx context.Context, _ time.Time) (Result, error) {
	drones, err := s.drones.ListDraining(ctx, s.db)
	if err != nil {
		return Result{}, fmt.Errorf("list draining drones: %w", err)
	}
	return s.adjustBatteries(ctx, NameBatteryDrain, drones, (*drone.Drone).Drained), nil
}

// ChargeBatteries adds a random step to every idle drone below full, never
// going above 100.
func (s *Sweeper) ChargeBatteries(ctx context.Context, _ time.Time) (Result, error) {
	drones, err := s.drones.ListCharging(ctx, s.db)
	if err != nil {
		return Result{}, fmt.Errorf("list charging drones: %w", err)
	}
	return s.adjustBatteries(ctx, NameBatteryCharge, drones, (*drone.Drone).Charged), nil
}

func (s *Sweeper) adjustBatteries(ctx context.Context, name string, drones []*drone.Drone, step func(*drone.Drone, int) int) Result {
	res := Result{Candidates: len(drones)}
	for _, d := range drones {
		level := step(d, s.intn(maxBatteryStep))
		if _, err := s.drones.SetBattery(ctx, s.db, d.ID, level); err != nil {
			res.Failed++
			slog.ErrorContext(ctx, "battery update failed",
				slog.String("job", name),
				slog.String("drone_id", d.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Updated++
		slog.InfoContext(ctx, "battery updated",
			slog.String("job", name),
			slog.String("drone_id", d.ID.String()),
			slog.String("serial_number", d.SerialNumber),
			slog.Int("from", d.BatteryCapacity),
			slog.Int("to", level),
		)
	}
	return res
}

// SettlePendingOrders marks orders pending for longer than the settle age as
// successful and their drones as delivered.
func (s *Sweeper) SettlePendingOrders(ctx context.Context, now time.Time) (Result, error) {
	orders, err := s.orders.ListPendingBefore(ctx, s.db, now.Add(-s.settleAfter))
	if err != nil {
		return Result{}, fmt.Errorf("list pending orders: %w", err)
	}

	res := Result{Candidates: len(orders)}
	for _, o := range orders {
		_, err := s.settler.SettleOrder(ctx, o)
		switch {
		case errors.Is(err, delivery.ErrOrderSettled):
			res.Skipped++
		case err != nil:
			res.Failed++
			slog.ErrorContext(ctx, "order settlement failed",
				slog.String("order_id", o.ID.String()),
				slog.String("error", err.Error()),
			)
		default:
			res.Updated++
			slog.InfoContext(ctx, "order settled",
				slog.String("order_id", o.ID.String()),
				slog.String("drone_id", o.DroneID.String()),
			)
		}
	}
	return res, nil
}

// ResetDeliveredDrones returns drones that have sat in delivered for longer
// than the reset age to idle.
func (s *Sweeper) ResetDeliveredDrones(ctx context.Context, now time.Time) (Result, error) {
	drones, err := s.drones.ListDeliveredBefore(ctx, s.db, now.Add(-s.resetAfter))
	if err != nil {
		return Result{}, fmt.Errorf("list delivered drones: %w", err)
	}

	res := Result{Candidates: len(drones)}
	for _, d := range drones {
		_, err := s.drones.Transition(ctx, s.db, d.ID, drone.StateDelivered, drone.StateIdle, drone.MinBattery)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res.Skipped++
		case err != nil:
			res.Failed++
			slog.ErrorContext(ctx, "drone reset failed",
				slog.String("drone_id", d.ID.String()),
				slog.String("error", err.Error()),
			)
		default:
			res.Updated++
			slog.InfoContext(ctx, "drone reset to idle",
				slog.String("serial_number", d.SerialNumber),
			)
		}
	}
	return res, nil
}
