package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"drone-dispatch/internal/drone"
	"drone-dispatch/internal/order"
	"drone-dispatch/internal/testutil"
)

var (
	orderCols = []string{"id", "drone_id", "status", "total_weight", "created_at", "updated_at"}
	lineCols  = []string{"id", "order_id", "medication_id", "quantity", "metadata", "created_at", "updated_at"}
	droneCols = []string{"id", "serial_number", "model", "weight_limit", "battery_capacity", "state", "created_at", "updated_at"}
)

func newTestRepo() Repository {
	return NewRepository(order.NewOrderRepository(), order.NewLineRepository(), drone.NewRepository())
}

func TestCreateOrder_RollsBackWhenDroneMoved(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	now := time.Now()

	droneID := uuid.New()
	o := order.NewOrder(droneID, 40)
	line := order.NewLine(o.ID, order.Item{MedicationID: uuid.New(), Quantity: 2}, order.Metadata{MedicationName: "Aspirin", DroneName: "DRN-1"})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO orders`).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow(o.ID.String(), droneID.String(), "pending", 40.0, now, now))
	mock.ExpectQuery(`INSERT INTO order_medications`).
		WillReturnRows(sqlmock.NewRows(lineCols).
			AddRow(line.ID.String(), o.ID.String(), line.MedicationID.String(), 2, []byte(`{"medication_name":"Aspirin","drone_name":"DRN-1"}`), now, now))
	mock.ExpectQuery(`UPDATE drones SET state`).
		WillReturnRows(sqlmock.NewRows(droneCols))
	mock.ExpectRollback()

	_, err := newTestRepo().CreateOrder(context.Background(), db, o, []*order.Line{line}, 25)
	if !errors.Is(err, ErrDroneChanged) {
		t.Fatalf("expected ErrDroneChanged, got %v", err)
	}
}

func TestCreateOrder_Commits(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	now := time.Now()

	droneID := uuid.New()
	o := order.NewOrder(droneID, 40)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO orders`).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow(o.ID.String(), droneID.String(), "pending", 40.0, now, now))
	mock.ExpectQuery(`UPDATE drones SET state`).
		WillReturnRows(sqlmock.NewRows(droneCols).
			AddRow(droneID.String(), "DRN-1", "heavyweight", 500.0, 80, "loaded", now, now))
	mock.ExpectCommit()

	d, err := newTestRepo().CreateOrder(context.Background(), db, o, nil, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.State != drone.StateLoaded {
		t.Fatalf("expected loaded, got %s", d.State)
	}
}

func TestSettleOrder_AlreadySettled(t *testing.T) {
	db, mock := testutil.NewMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE orders SET status`).
		WillReturnRows(sqlmock.NewRows(orderCols))
	mock.ExpectRollback()

	_, err := newTestRepo().SettleOrder(context.Background(), db, uuid.New(), uuid.New())
	if !errors.Is(err, ErrOrderSettled) {
		t.Fatalf("expected ErrOrderSettled, got %v", err)
	}
}
