package drone

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateLoaded     State = "loaded"
	StateDelivering State = "delivering"
	StateDelivered  State = "delivered"
	// StateReturning is reserved. No transition enters or leaves it.
	StateReturning State = "returning"
)

var States = []State{StateIdle, StateLoading, StateLoaded, StateDelivering, StateDelivered, StateReturning}

type Model string

const (
	ModelLightweight   Model = "lightweight"
	ModelMiddleweight  Model = "middleweight"
	ModelCruiserweight Model = "cruiserweight"
	ModelHeavyweight   Model = "heavyweight"
)

// DefaultWeightLimit is the carrying capacity assigned to each model when a
// drone is registered without an explicit limit.
var DefaultWeightLimit = map[Model]float64{
	ModelLightweight:   200,
	ModelMiddleweight:  300,
	ModelCruiserweight: 400,
	ModelHeavyweight:   500,
}

const (
	MaxBattery = 100
	MinBattery = 0
)

type Drone struct {
	ID              uuid.UUID `db:"id" json:"id"`
	SerialNumber    string    `db:"serial_number" json:"serial_number"`
	Model           Model     `db:"model" json:"model"`
	WeightLimit     float64   `db:"weight_limit" json:"weight_limit"`
	BatteryCapacity int       `db:"battery_capacity" json:"battery_capacity"`
	State           State     `db:"state" json:"state"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Query filters a drone listing.
type Query struct {
	SerialNumber string
	Model        Model
	State        State
	IsAvailable  *bool
	MinBattery   int
}
