package delivery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/common"
	"drone-dispatch/internal/delivery"
	"drone-dispatch/internal/drone"
	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/medication"
	"drone-dispatch/internal/order"
	"drone-dispatch/internal/testutil"
)

const minBattery = 25

type fixture struct {
	svc    delivery.Service
	mock   sqlmock.Sqlmock
	drones *testutil.DroneRepo
	meds   *testutil.MedicationRepo
	orders *testutil.OrderRepo
	lines  *testutil.LineRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock := testutil.NewMockDB(t)
	clock := common.NewFixedClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))

	f := &fixture{
		mock:   mock,
		drones: testutil.NewDroneRepo(clock),
		meds:   testutil.NewMedicationRepo(clock),
		orders: testutil.NewOrderRepo(clock),
		lines:  testutil.NewLineRepo(),
	}
	repo := delivery.NewRepository(f.orders, f.lines, f.drones)
	f.svc = delivery.NewService(db, repo, f.drones, f.meds, minBattery)
	return f
}

func (f *fixture) drone(state drone.State, battery int, limit float64) *drone.Drone {
	d := drone.New("DRN-"+uuid.NewString()[:6], drone.ModelHeavyweight, limit, battery)
	d.State = state
	f.drones.Put(d)
	return d
}

func (f *fixture) medication(t *testing.T, weight float64) *medication.Medication {
	t.Helper()
	m := medication.New("Med_"+uuid.NewString()[:6], weight, "", nil)
	require.NoError(t, f.meds.Create(context.Background(), nil, m))
	return m
}

func (f *fixture) expectCommit() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

func assertDomainError(t *testing.T, err error, code, msg string) {
	t.Helper()
	var de *domainerrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	assert.Equal(t, code, de.Code)
	if msg != "" {
		assert.Contains(t, de.Message, msg)
	}
}

func TestPlaceOrder_WithinLimit(t *testing.T) {
	f := newFixture(t)
	d := f.drone(drone.StateLoading, 100, 500)
	a := f.medication(t, 75)
	b := f.medication(t, 90)
	f.expectCommit()

	details, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		DroneID: d.ID,
		Items: []order.Item{
			{MedicationID: a.ID, Quantity: 2},
			{MedicationID: b.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, details.Order.Status)
	assert.InDelta(t, 240, details.Order.TotalWeight, 0.001)
	require.Len(t, details.Items, 2)
	assert.Equal(t, a.MedicationName, details.Items[0].Metadata.MedicationName)
	assert.Equal(t, d.SerialNumber, details.Items[0].Metadata.DroneName)

	assert.Equal(t, 1, f.orders.Len())
	assert.Equal(t, 2, f.lines.Len())
	assert.Equal(t, drone.StateLoaded, f.drones.Get(d.ID).State)
}

func TestPlaceOrder_OverLimitWritesNothing(t *testing.T) {
	f := newFixture(t)
	d := f.drone(drone.StateLoading, 100, 500)
	a := f.medication(t, 300)
	b := f.medication(t, 400)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		DroneID: d.ID,
		Items: []order.Item{
			{MedicationID: a.ID, Quantity: 2},
			{MedicationID: b.ID, Quantity: 1},
		},
	})
	assertDomainError(t, err, domainerrors.ErrValidation, "Total medication weight exceeds drone's weight limit")

	assert.Zero(t, f.orders.Len())
	assert.Zero(t, f.lines.Len())
	assert.Equal(t, drone.StateLoading, f.drones.Get(d.ID).State)
}

func TestPlaceOrder_WeightBoundary(t *testing.T) {
	t.Run("equal to limit", func(t *testing.T) {
		f := newFixture(t)
		d := f.drone(drone.StateLoading, 100, 500)
		m := f.medication(t, 250)
		f.expectCommit()

		_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
			DroneID: d.ID,
			Items:   []order.Item{{MedicationID: m.ID, Quantity: 2}},
		})
		require.NoError(t, err)
	})

	t.Run("one over limit", func(t *testing.T) {
		f := newFixture(t)
		d := f.drone(drone.StateLoading, 100, 500)
		m := f.medication(t, 250)
		extra := f.medication(t, 1)

		_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
			DroneID: d.ID,
			Items:   []order.Item{{MedicationID: m.ID, Quantity: 2}, {MedicationID: extra.ID, Quantity: 1}},
		})
		assertDomainError(t, err, domainerrors.ErrValidation, "weight limit")
	})

	t.Run("fractional weights sum exactly", func(t *testing.T) {
		f := newFixture(t)
		d := f.drone(drone.StateLoading, 100, 0.3)
		a := f.medication(t, 0.1)
		b := f.medication(t, 0.2)
		f.expectCommit()

		_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
			DroneID: d.ID,
			Items:   []order.Item{{MedicationID: a.ID, Quantity: 1}, {MedicationID: b.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	})
}

func TestPlaceOrder_MissingMedicationWritesNothing(t *testing.T) {
	f := newFixture(t)
	d := f.drone(drone.StateLoading, 100, 500)
	m := f.medication(t, 10)
	missing := uuid.New()

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		DroneID: d.ID,
		Items:   []order.Item{{MedicationID: m.ID, Quantity: 1}, {MedicationID: missing, Quantity: 1}},
	})
	assertDomainError(t, err, domainerrors.ErrValidation, missing.String())

	assert.Zero(t, f.orders.Len())
	assert.Zero(t, f.lines.Len())
	assert.Equal(t, drone.StateLoading, f.drones.Get(d.ID).State)
}

func TestPlaceOrder_AdmissionOrder(t *testing.T) {
	tests := []struct {
		name    string
		state   drone.State
		battery int
		code    string
		msg     string
	}{
		{"idle", drone.StateIdle, 100, domainerrors.ErrValidation, "Drone is not in LOADING state"},
		// state is checked before battery
		{"idle and drained", drone.StateIdle, 5, domainerrors.ErrValidation, "Drone is not in LOADING state"},
		{"loading and drained", drone.StateLoading, 24, domainerrors.ErrValidation, "below 25%"},
		{"loaded", drone.StateLoaded, 90, domainerrors.ErrValidation, "Drone is not in LOADING state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.drone(tt.state, tt.battery, 500)
			// never resolved: the drone check fails first
			items := []order.Item{{MedicationID: uuid.New(), Quantity: 1}}

			_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{DroneID: d.ID, Items: items})
			assertDomainError(t, err, tt.code, tt.msg)
			assert.Equal(t, tt.state, f.drones.Get(d.ID).State)
		})
	}
}

func TestPlaceOrder_UnknownDrone(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		DroneID: uuid.New(),
		Items:   []order.Item{{MedicationID: uuid.New(), Quantity: 1}},
	})
	assertDomainError(t, err, domainerrors.ErrNotFound, "Drone not found")
}

func TestPlaceOrder_DroneUnloadedConcurrently(t *testing.T) {
	f := newFixture(t)
	d := f.drone(drone.StateLoading, 100, 500)
	m := f.medication(t, 10)

	f.drones.BeforeTransition = func(id uuid.UUID) {
		f.drones.BeforeTransition = nil
		moved := f.drones.Get(id)
		moved.State = drone.StateIdle
		f.drones.Put(moved)
	}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		DroneID: d.ID,
		Items:   []order.Item{{MedicationID: m.ID, Quantity: 1}},
	})
	assertDomainError(t, err, domainerrors.ErrValidation, "Drone is not in LOADING state")
	assert.Equal(t, drone.StateIdle, f.drones.Get(d.ID).State)
}

func TestPlaceOrder_DroneChangedAndRestoredConcurrently(t *testing.T) {
	f := newFixture(t)
	d := f.drone(drone.StateLoading, 100, 500)
	m := f.medication(t, 10)

	f.drones.LoseTransition = map[uuid.UUID]bool{d.ID: true}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		DroneID: d.ID,
		Items:   []order.Item{{MedicationID: m.ID, Quantity: 1}},
	})
	assertDomainError(t, err, domainerrors.ErrConflict, "please retry")
	assert.Equal(t, drone.StateLoading, f.drones.Get(d.ID).State)
}

func TestPlaceOrder_LineFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	d := f.drone(drone.StateLoading, 100, 500)
	m := f.medication(t, 10)
	f.lines.Err = errors.New("connection reset")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.PlaceOrder(context.Background(), order.PlaceOrderRequest{
		DroneID: d.ID,
		Items:   []order.Item{{MedicationID: m.ID, Quantity: 1}},
	})
	assertDomainError(t, err, domainerrors.ErrInternal, "")
	assert.Equal(t, drone.StateLoading, f.drones.Get(d.ID).State)
}

func TestSettleOrder(t *testing.T) {
	f := newFixture(t)
	d := f.drone(drone.StateDelivering, 60, 500)
	o := order.NewOrder(d.ID, 100)
	f.orders.Put(o)

	f.expectCommit()
	settled, err := f.svc.SettleOrder(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, order.StatusSuccessful, settled.Status)
	assert.Equal(t, drone.StateDelivered, f.drones.Get(d.ID).State)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.SettleOrder(context.Background(), o)
	assert.ErrorIs(t, err, delivery.ErrOrderSettled)
}

func TestTotalWeight(t *testing.T) {
	a := medication.New("A", 12.34, "", nil)
	b := medication.New("B", 0.01, "", nil)
	meds := map[uuid.UUID]*medication.Medication{a.ID: a, b.ID: b}

	got := delivery.TotalWeight([]order.Item{{MedicationID: a.ID, Quantity: 3}, {MedicationID: b.ID, Quantity: 7}}, meds)
	assert.Equal(t, 37.09, got)
}
