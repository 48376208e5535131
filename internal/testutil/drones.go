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
	"drone-dispatch/internal/drone"
)

// DroneRepo is an in-memory drone.Repository. Rows are copied on the way in
// and out so callers never alias stored state.
type DroneRepo struct {
	mu     sync.Mutex
	clock  common.Clock
	drones map[uuid.UUID]*drone.Drone

	// FailBattery makes SetBattery fail for the given drones.
	FailBattery map[uuid.UUID]error
	// BeforeTransition runs before a conditional transition is applied.
	BeforeTransition func(id uuid.UUID)
	// LoseTransition makes Transition report a lost guard for the given
	// drones while leaving their rows untouched, as when a concurrent writer
	// moved the drone away and back again.
	LoseTransition map[uuid.UUID]bool
	// Err, when set, is returned from every list query.
	Err error
}

func NewDroneRepo(clock common.Clock, drones ...*drone.Drone) *DroneRepo {
	r := &DroneRepo{clock: clock, drones: map[uuid.UUID]*drone.Drone{}, FailBattery: map[uuid.UUID]error{}}
	for _, d := range drones {
		r.Put(d)
	}
	return r
}

func (r *DroneRepo) Put(d *drone.Drone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.drones[d.ID] = &cp
}

// Get returns a copy of the stored drone, or nil.
func (r *DroneRepo) Get(id uuid.UUID) *drone.Drone {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drones[id]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

func (r *DroneRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drones)
}

func (r *DroneRepo) Create(_ context.Context, _ sqlx.ExtContext, d *drone.Drone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.drones {
		if existing.SerialNumber == d.SerialNumber {
			return UniqueViolation("drones_serial_number_key")
		}
	}
	now := r.clock.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	cp := *d
	r.drones[d.ID] = &cp
	return nil
}

func (r *DroneRepo) InsertIfAbsent(ctx context.Context, ext sqlx.ExtContext, d *drone.Drone) (bool, error) {
	err := r.Create(ctx, ext, d)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *DroneRepo) GetByID(_ context.Context, _ sqlx.ExtContext, id uuid.UUID) (*drone.Drone, error) {
	if d := r.Get(id); d != nil {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (r *DroneRepo) List(_ context.Context, _ sqlx.ExtContext, filter drone.Query, q common.ListQuery) ([]*drone.Drone, int, error) {
	if r.Err != nil {
		return nil, 0, r.Err
	}
	all := r.matching(func(d *drone.Drone) bool {
		if filter.SerialNumber != "" && d.SerialNumber != filter.SerialNumber {
			return false
		}
		if filter.Model != "" && d.Model != filter.Model {
			return false
		}
		if filter.State != "" && d.State != filter.State {
			return false
		}
		if filter.IsAvailable != nil {
			available := d.State == drone.StateIdle && d.BatteryCapacity >= filter.MinBattery
			if available != *filter.IsAvailable {
				return false
			}
		}
		return true
	})
	return page(all, q)
}

func (r *DroneRepo) Transition(_ context.Context, _ sqlx.ExtContext, id uuid.UUID, from, to drone.State, minBattery int) (*drone.Drone, error) {
	if r.BeforeTransition != nil {
		r.BeforeTransition(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drones[id]
	if !ok || d.State != from || d.BatteryCapacity < minBattery || r.LoseTransition[id] {
		return nil, sql.ErrNoRows
	}
	d.State = to
	d.UpdatedAt = r.clock.Now()
	cp := *d
	return &cp, nil
}

func (r *DroneRepo) SetState(_ context.Context, _ sqlx.ExtContext, id uuid.UUID, to drone.State) (*drone.Drone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drones[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d.State = to
	d.UpdatedAt = r.clock.Now()
	cp := *d
	return &cp, nil
}

func (r *DroneRepo) SetBattery(_ context.Context, _ sqlx.ExtContext, id uuid.UUID, level int) (*drone.Drone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailBattery[id]; err != nil {
		return nil, err
	}
	d, ok := r.drones[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d.BatteryCapacity = level
	cp := *d
	return &cp, nil
}

func (r *DroneRepo) ListDraining(_ context.Context, _ sqlx.ExtContext) ([]*drone.Drone, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.matching(func(d *drone.Drone) bool {
		return d.State != drone.StateIdle && d.BatteryCapacity > 0
	}), nil
}

func (r *DroneRepo) ListCharging(_ context.Context, _ sqlx.ExtContext) ([]*drone.Drone, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.matching(func(d *drone.Drone) bool {
		return d.State == drone.StateIdle && d.BatteryCapacity < drone.MaxBattery
	}), nil
}

func (r *DroneRepo) ListDeliveredBefore(_ context.Context, _ sqlx.ExtContext, cutoff time.Time) ([]*drone.Drone, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.matching(func(d *drone.Drone) bool {
		return d.State == drone.StateDelivered && d.UpdatedAt.Before(cutoff)
	}), nil
}

func (r *DroneRepo) matching(keep func(*drone.Drone) bool) []*drone.Drone {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*drone.Drone
	for _, d := range r.drones {
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out
}

func page[T any](all []T, q common.ListQuery) ([]T, int, error) {
	if q.NoPaginate {
		return all, len(all), nil
	}
	total := len(all)
	start := min(q.Offset, total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return all[start:end], total, nil
}
