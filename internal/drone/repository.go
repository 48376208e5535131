package drone

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/common"
)

const columns = `id, serial_number, model, weight_limit, battery_capacity, state, created_at, updated_at`

var orderableColumns = map[string]bool{
	"created_at":       true,
	"updated_at":       true,
	"serial_number":    true,
	"battery_capacity": true,
	"weight_limit":     true,
}

// Repository is the query contract over the drones table. Methods returning a
// single row surface sql.ErrNoRows when nothing matches, including when a
// conditional update's guard rejects the row.
type Repository interface {
	Create(ctx context.Context, ext sqlx.ExtContext, d *Drone) error
	InsertIfAbsent(ctx context.Context, ext sqlx.ExtContext, d *Drone) (bool, error)
	GetByID(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID) (*Drone, error)
	List(ctx context.Context, ext sqlx.ExtContext, filter Query, q common.ListQuery) ([]*Drone, int, error)
	Transition(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, from, to State, minBattery int) (*Drone, error)
	SetState(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, to State) (*Drone, error)
	SetBattery(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, level int) (*Drone, error)
	ListDraining(ctx context.Context, ext sqlx.ExtContext) ([]*Drone, error)
	ListCharging(ctx context.Context, ext sqlx.ExtContext) ([]*Drone, error)
	ListDeliveredBefore(ctx context.Context, ext sqlx.ExtContext, cutoff time.Time) ([]*Drone, error)
}

type droneRepository struct{}

func NewRepository() Repository {
	return &droneRepository{}
}

func (r *droneRepository) Create(ctx context.Context, ext sqlx.ExtContext, d *Drone) error {
	query := fmt.Sprintf(`INSERT INTO drones (id, serial_number, model, weight_limit, battery_capacity, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, columns)
	return sqlx.GetContext(ctx, ext, d, query, d.ID, d.SerialNumber, d.Model, d.WeightLimit, d.BatteryCapacity, d.State)
}

// InsertIfAbsent inserts d unless a drone with the same serial number exists.
func (r *droneRepository) InsertIfAbsent(ctx context.Context, ext sqlx.ExtContext, d *Drone) (bool, error) {
	const query = `INSERT INTO drones (id, serial_number, model, weight_limit, battery_capacity, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (serial_number) DO NOTHING`
	res, err := ext.ExecContext(ctx, query, d.ID, d.SerialNumber, d.Model, d.WeightLimit, d.BatteryCapacity, d.State)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *droneRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID) (*Drone, error) {
	var d Drone
	query := fmt.Sprintf(`SELECT %s FROM drones WHERE id = $1`, columns)
	if err := sqlx.GetContext(ctx, ext, &d, query, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *droneRepository) List(ctx context.Context, ext sqlx.ExtContext, filter Query, q common.ListQuery) ([]*Drone, int, error) {
	var where common.Where
	if filter.SerialNumber != "" {
		where.Add("serial_number = $%d", filter.SerialNumber)
	}
	if filter.Model != "" {
		where.Add("model = $%d", filter.Model)
	}
	if filter.State != "" {
		where.Add("state = $%d", filter.State)
	}
	if filter.IsAvailable != nil {
		if *filter.IsAvailable {
			where.AddRaw("state = 'idle'")
			where.Add("battery_capacity >= $%d", filter.MinBattery)
		} else {
			where.Add("(state <> 'idle' OR battery_capacity < $%d)", filter.MinBattery)
		}
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM drones%s%s`, columns, where.String(), q.OrderClause(orderableColumns))

	if q.NoPaginate {
		var drones []*Drone
		if err := sqlx.SelectContext(ctx, ext, &drones, dataQuery, where.Args...); err != nil {
			return nil, 0, err
		}
		return drones, len(drones), nil
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM drones%s`, where.String())
	if err := sqlx.GetContext(ctx, ext, &total, countQuery, where.Args...); err != nil {
		return nil, 0, err
	}

	dataQuery += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, where.Next(), where.Next()+1)
	args := append(where.Args, q.Limit, q.Offset)

	var drones []*Drone
	if err := sqlx.SelectContext(ctx, ext, &drones, dataQuery, args...); err != nil {
		return nil, 0, err
	}
	return drones, total, nil
}

// Transition moves a drone from one state to another in a single conditional
// statement. The row is only touched if it is still in from and holds at
// least minBattery.
func (r *droneRepository) Transition(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, from, to State, minBattery int) (*Drone, error) {
	var d Drone
	query := fmt.Sprintf(`UPDATE drones SET state = $3, updated_at = NOW()
		WHERE id = $1 AND state = $2 AND battery_capacity >= $4
		RETURNING %s`, columns)
	if err := sqlx.GetContext(ctx, ext, &d, query, id, from, to, minBattery); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *droneRepository) SetState(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, to State) (*Drone, error) {
	var d Drone
	query := fmt.Sprintf(`UPDATE drones SET state = $2, updated_at = NOW() WHERE id = $1 RETURNING %s`, columns)
	if err := sqlx.GetContext(ctx, ext, &d, query, id, to); err != nil {
		return nil, err
	}
	return &d, nil
}

// SetBattery leaves updated_at alone so that battery simulation does not
// postpone the delivered-drone reset.
func (r *droneRepository) SetBattery(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID, level int) (*Drone, error) {
	var d Drone
	query := fmt.Sprintf(`UPDATE drones SET battery_capacity = $2 WHERE id = $1 RETURNING %s`, columns)
	if err := sqlx.GetContext(ctx, ext, &d, query, id, level); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *droneRepository) ListDraining(ctx context.Context, ext sqlx.ExtContext) ([]*Drone, error) {
	var drones []*Drone
	query := fmt.Sprintf(`SELECT %s FROM drones WHERE state <> $1 AND battery_capacity > 0 ORDER BY serial_number`, columns)
	if err := sqlx.SelectContext(ctx, ext, &drones, query, StateIdle); err != nil {
		return nil, err
	}
	return drones, nil
}

func (r *droneRepository) ListCharging(ctx context.Context, ext sqlx.ExtContext) ([]*Drone, error) {
	var drones []*Drone
	query := fmt.Sprintf(`SELECT %s FROM drones WHERE state = $1 AND battery_capacity < $2 ORDER BY serial_number`, columns)
	if err := sqlx.SelectContext(ctx, ext, &drones, query, StateIdle, MaxBattery); err != nil {
		return nil, err
	}
	return drones, nil
}

func (r *droneRepository) ListDeliveredBefore(ctx context.Context, ext sqlx.ExtContext, cutoff time.Time) ([]*Drone, error) {
	var drones []*Drone
	query := fmt.Sprintf(`SELECT %s FROM drones WHERE state = $1 AND updated_at < $2 ORDER BY updated_at`, columns)
	if err := sqlx.SelectContext(ctx, ext, &drones, query, StateDelivered, cutoff); err != nil {
		return nil, err
	}
	return drones, nil
}
