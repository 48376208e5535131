package errors

import "fmt"

const (
	ErrNotFound          = "NOT_FOUND"
	ErrInvalidTransition = "INVALID_TRANSITION"
	ErrConflict          = "CONFLICT"
	ErrValidation        = "VALIDATION"
	ErrInternal          = "INTERNAL"

	// Load-shedding codes. They never wrap a domain failure.
	ErrRateLimited = "RATE_LIMITED"
	ErrUnavailable = "SERVICE_UNAVAILABLE"
	ErrCircuitOpen = "CIRCUIT_OPEN"
)

type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func Wrap(code, msg string, err error) *DomainError {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// --- Generic ---

func NewNotFound(msg string) *DomainError {
	return &DomainError{Code: ErrNotFound, Message: msg}
}

func NewInvalidTransition(msg string) *DomainError {
	return &DomainError{Code: ErrInvalidTransition, Message: msg}
}

func NewConflict(msg string) *DomainError {
	return &DomainError{Code: ErrConflict, Message: msg}
}

func NewValidation(msg string) *DomainError {
	return &DomainError{Code: ErrValidation, Message: msg}
}

func NewInternal(msg string, err error) *DomainError {
	return &DomainError{Code: ErrInternal, Message: msg, Err: err}
}

// --- Drone ---

func DroneNotFound() *DomainError {
	return NewNotFound("Drone not found")
}

func DroneBatteryTooLow(threshold int, action string) *DomainError {
	return NewValidation(fmt.Sprintf("Drone battery is below %d%%, cannot %s", threshold, action))
}

// DroneInvalidTransition reports a state-gated action attempted from the
// wrong state. The message always names the current state.
func DroneInvalidTransition(current, target string) *DomainError {
	return NewInvalidTransition(fmt.Sprintf("Drone is currently %s, cannot be moved to %s state", current, target))
}

func DroneNotReadyable(current string) *DomainError {
	return NewInvalidTransition(fmt.Sprintf("Drone is currently %s, you can only make drones in 'loaded' state ready for delivery", current))
}

func DroneNotLoading() *DomainError {
	return NewValidation("Drone is not in LOADING state")
}

// DroneChangedConcurrently reports a lost admission race on a drone that
// admits orders again by the time it is re-read.
func DroneChangedConcurrently() *DomainError {
	return NewConflict("Drone changed while the order was being placed, please retry")
}

func DroneSerialTaken(serial string) *DomainError {
	return NewConflict(fmt.Sprintf("a drone with serial number %s already exists", serial))
}

// --- Medication ---

func MedicationNotFound() *DomainError {
	return NewNotFound("Medication not found")
}

func MedicationMissing(id string) *DomainError {
	return NewValidation(fmt.Sprintf("Medication with ID %s not found", id))
}

func DuplicateMedication(err error) *DomainError {
	return Wrap(ErrConflict, "A medication with the given details already exists", err)
}

// --- Order ---

func OrderNotFound() *DomainError {
	return NewNotFound("Order not found")
}

func OrderOverweight() *DomainError {
	return NewValidation("Total medication weight exceeds drone's weight limit")
}
