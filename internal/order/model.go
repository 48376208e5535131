package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusAborted    Status = "aborted"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

var Statuses = []Status{StatusPending, StatusSuccessful, StatusAborted, StatusDelivered, StatusFailed}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

type Order struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DroneID     uuid.UUID `db:"drone_id" json:"drone_id"`
	Status      Status    `db:"status" json:"status"`
	TotalWeight float64   `db:"total_weight" json:"total_weight"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Item is one requested medication and how many of it to carry.
type Item struct {
	MedicationID uuid.UUID `json:"medication_id" binding:"required"`
	Quantity     int       `json:"quantity" binding:"required,min=1"`
}

// Metadata is the snapshot taken when the line is written. It is kept so that
// later edits to the medication or drone do not rewrite order history.
// DroneName holds the drone's serial number.
type Metadata struct {
	MedicationName string `json:"medication_name"`
	DroneName      string `json:"drone_name"`
}

// Value encodes the snapshot as text; lib/pq would send a []byte as bytea.
func (m Metadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = Metadata{}
		return nil
	default:
		return errors.New("order: unsupported metadata type")
	}
}

// Line is a row of order_medications.
type Line struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OrderID      uuid.UUID `db:"order_id" json:"order_id"`
	MedicationID uuid.UUID `db:"medication_id" json:"medication_id"`
	Quantity     int       `db:"quantity" json:"quantity"`
	Metadata     Metadata  `db:"metadata" json:"metadata"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Details renders as the order's own fields plus its lines under "items".
type Details struct {
	*Order
	Items []*Line `json:"items"`
}

type Query struct {
	Status  Status
	DroneID *uuid.UUID
}

func NewOrder(droneID uuid.UUID, totalWeight float64) *Order {
	now := time.Now()
	return &Order{
		ID:          uuid.New(),
		DroneID:     droneID,
		Status:      StatusPending,
		TotalWeight: totalWeight,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewLine(orderID uuid.UUID, item Item, meta Metadata) *Line {
	now := time.Now()
	return &Line{
		ID:           uuid.New(),
		OrderID:      orderID,
		MedicationID: item.MedicationID,
		Quantity:     item.Quantity,
		Metadata:     meta,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
