package drone

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/common"
	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/repo/postgres"
)

type Service interface {
	Create(ctx context.Context, req CreateDroneRequest) (*Drone, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Drone, error)
	List(ctx context.Context, filter Query, q common.ListQuery) ([]*Drone, int, error)
	Load(ctx context.Context, id uuid.UUID) (*Drone, error)
	Unload(ctx context.Context, id uuid.UUID) (*Drone, error)
	MakeReady(ctx context.Context, id uuid.UUID) (*Drone, error)
	SeedFleet(ctx context.Context) (int, error)
}

type service struct {
	repo       Repository
	db         *sqlx.DB
	minBattery int
}

func NewDroneService(repo Repository, db *sqlx.DB, minBattery int) Service {
	return &service{repo: repo, db: db, minBattery: minBattery}
}

func (s *service) Create(ctx context.Context, req CreateDroneRequest) (*Drone, error) {
	battery := MaxBattery
	if req.BatteryCapacity != nil {
		battery = *req.BatteryCapacity
	}
	d := New(req.SerialNumber, req.Model, req.WeightLimit, battery)
	if err := s.repo.Create(ctx, s.db, d); err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, domainerrors.DroneSerialTaken(req.SerialNumber)
		}
		return nil, domainerrors.NewInternal("failed to create drone", err)
	}
	return d, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Drone, error) {
	d, err := s.repo.GetByID(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.DroneNotFound()
	}
	if err != nil {
		return nil, domainerrors.NewInternal("failed to fetch drone", err)
	}
	return d, nil
}

func (s *service) List(ctx context.Context, filter Query, q common.ListQuery) ([]*Drone, int, error) {
	q.Normalize()
	filter.MinBattery = s.minBattery
	drones, total, err := s.repo.List(ctx, s.db, filter, q)
	if err != nil {
		return nil, 0, domainerrors.NewInternal("failed to list drones", err)
	}
	return drones, total, nil
}

func (s *service) Load(ctx context.Context, id uuid.UUID) (*Drone, error) {
	guard := func(d *Drone) error { return d.CheckLoad(s.minBattery) }
	return s.transition(ctx, id, StateIdle, StateLoading, s.minBattery, guard)
}

func (s *service) Unload(ctx context.Context, id uuid.UUID) (*Drone, error) {
	guard := func(d *Drone) error { return d.CheckUnload() }
	return s.transition(ctx, id, StateLoading, StateIdle, MinBattery, guard)
}

func (s *service) MakeReady(ctx context.Context, id uuid.UUID) (*Drone, error) {
	guard := func(d *Drone) error { return d.CheckReady() }
	return s.transition(ctx, id, StateLoaded, StateDelivering, MinBattery, guard)
}

// transition validates the move against the current row, then applies it as
// a conditional update. If another writer changed the row in between, the
// guard is re-evaluated against the fresh row so the caller sees the real
// reason.
func (s *service) transition(ctx context.Context, id uuid.UUID, from, to State, minBattery int, guard func(*Drone) error) (*Drone, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(d); err != nil {
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, s.db, id, from, to, minBattery)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if err := guard(current); err != nil {
			return nil, err
		}
		return nil, domainerrors.DroneInvalidTransition(string(current.State), string(to))
	}
	if err != nil {
		return nil, domainerrors.NewInternal("failed to update drone state", err)
	}

	slog.InfoContext(ctx, "drone state changed",
		slog.String("drone_id", id.String()),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return updated, nil
}

func (s *service) SeedFleet(ctx context.Context) (int, error) {
	inserted := 0
	err := postgres.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, d := range DefaultFleet() {
			ok, err := s.repo.InsertIfAbsent(ctx, tx, d)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, domainerrors.NewInternal("failed to seed drones", err)
	}
	return inserted, nil
}
