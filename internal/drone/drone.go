package drone

import (
	"time"

	"github.com/google/uuid"

	domainerrors "drone-dispatch/internal/errors"
)

func New(serial string, model Model, weightLimit float64, battery int) *Drone {
	if weightLimit <= 0 {
		weightLimit = DefaultWeightLimit[model]
	}
	now := time.Now()
	return &Drone{
		ID:              uuid.New(),
		SerialNumber:    serial,
		Model:           model,
		WeightLimit:     weightLimit,
		BatteryCapacity: battery,
		State:           StateIdle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CheckLoad guards idle -> loading. Battery is checked before state.
func (d *Drone) CheckLoad(minBattery int) error {
	if d.BatteryCapacity < minBattery {
		return domainerrors.DroneBatteryTooLow(minBattery, "load")
	}
	if d.State != StateIdle {
		return domainerrors.DroneInvalidTransition(string(d.State), string(StateLoading))
	}
	return nil
}

// CheckUnload guards loading -> idle.
func (d *Drone) CheckUnload() error {
	if d.State != StateLoading {
		return domainerrors.DroneInvalidTransition(string(d.State), string(StateIdle))
	}
	return nil
}

// CheckReady guards loaded -> delivering.
func (d *Drone) CheckReady() error {
	if d.State != StateLoaded {
		return domainerrors.DroneNotReadyable(string(d.State))
	}
	return nil
}

// CheckAdmission guards loading -> loaded when an order is placed. State is
// checked before battery; the weight check belongs to the caller since it
// needs the resolved medications.
func (d *Drone) CheckAdmission(minBattery int) error {
	if d.State != StateLoading {
		return domainerrors.DroneNotLoading()
	}
	if d.BatteryCapacity < minBattery {
		return domainerrors.DroneBatteryTooLow(minBattery, "create an order")
	}
	return nil
}

func (d *Drone) CanCarry(weight float64) bool {
	return weight <= d.WeightLimit
}

// Drained returns the battery level after losing amount, floored at zero.
func (d *Drone) Drained(amount int) int {
	return max(MinBattery, d.BatteryCapacity-amount)
}

// Charged returns the battery level after gaining amount, capped at 100.
func (d *Drone) Charged(amount int) int {
	return min(MaxBattery, d.BatteryCapacity+amount)
}

func (m Model) Valid() bool {
	_, ok := DefaultWeightLimit[m]
	return ok
}

func (s State) Valid() bool {
	for _, st := range States {
		if st == s {
			return true
		}
	}
	return false
}
