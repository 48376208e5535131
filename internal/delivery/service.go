package delivery

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/drone"
	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/medication"
	"drone-dispatch/internal/order"
)

type Service interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Details, error)
	SettleOrder(ctx context.Context, o *order.Order) (*order.Order, error)
}

type service struct {
	db          *sqlx.DB
	repo        Repository
	drones      drone.Repository
	medications medication.Repository
	minBattery  int
}

func NewService(db *sqlx.DB, repo Repository, drones drone.Repository, medications medication.Repository, minBattery int) Service {
	return &service{db: db, repo: repo, drones: drones, medications: medications, minBattery: minBattery}
}

// PlaceOrder runs the admission checks in order (drone exists, drone admits
// orders, medications exist, weight fits) and then writes the order.
func (s *service) PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Details, error) {
	d, err := s.drone(ctx, req.DroneID)
	if err != nil {
		return nil, err
	}
	if err := d.CheckAdmission(s.minBattery); err != nil {
		return nil, err
	}

	meds, err := s.resolveMedications(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	total := TotalWeight(req.Items, meds)
	if !d.CanCarry(total) {
		return nil, domainerrors.OrderOverweight()
	}

	o := order.NewOrder(d.ID, total)
	lines := make([]*order.Line, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, order.NewLine(o.ID, item, order.Metadata{
			MedicationName: meds[item.MedicationID].MedicationName,
			DroneName:      d.SerialNumber,
		}))
	}

	if _, err := s.repo.CreateOrder(ctx, s.db, o, lines, s.minBattery); err != nil {
		if errors.Is(err, ErrDroneChanged) {
			return nil, s.admissionLost(ctx, d.ID)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "order placed",
		slog.String("order_id", o.ID.String()),
		slog.String("drone_id", d.ID.String()),
		slog.Float64("total_weight", total),
		slog.Int("lines", len(lines)),
	)
	return &order.Details{Order: o, Items: lines}, nil
}

func (s *service) SettleOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	return s.repo.SettleOrder(ctx, s.db, o.ID, o.DroneID)
}

func (s *service) drone(ctx context.Context, id uuid.UUID) (*drone.Drone, error) {
	d, err := s.drones.GetByID(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.DroneNotFound()
	}
	if err != nil {
		return nil, domainerrors.NewInternal("failed to fetch drone", err)
	}
	return d, nil
}

// resolveMedications loads every referenced medication. The first id in
// request order that does not exist is reported.
func (s *service) resolveMedications(ctx context.Context, items []order.Item) (map[uuid.UUID]*medication.Medication, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if !seen[item.MedicationID] {
			seen[item.MedicationID] = true
			ids = append(ids, item.MedicationID)
		}
	}

	found, err := s.medications.GetByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, domainerrors.NewInternal("failed to fetch medications", err)
	}

	meds := make(map[uuid.UUID]*medication.Medication, len(found))
	for _, m := range found {
		meds[m.ID] = m
	}
	for _, id := range ids {
		if _, ok := meds[id]; !ok {
			return nil, domainerrors.MedicationMissing(id.String())
		}
	}
	return meds, nil
}

// admissionLost re-reads the drone after a concurrent writer beat us to it
// and reports why it no longer admits the order. A drone that admits orders
// again was changed and restored in between, so the caller may retry.
func (s *service) admissionLost(ctx context.Context, id uuid.UUID) error {
	d, err := s.drone(ctx, id)
	if err != nil {
		return err
	}
	if err := d.CheckAdmission(s.minBattery); err != nil {
		return err
	}
	return domainerrors.DroneChangedConcurrently()
}

// TotalWeight sums weight × quantity over items, rounded to the two decimal
// places the store keeps.
func TotalWeight(items []order.Item, meds map[uuid.UUID]*medication.Medication) float64 {
	var total float64
	for _, item := range items {
		if m, ok := meds[item.MedicationID]; ok {
			total += m.Weight * float64(item.Quantity)
		}
	}
	return math.Round(total*100) / 100
}
