package job

import (
	"context"
	"time"
)

// Task is one tick of a sweep. It receives the time the tick fired so that
// age comparisons never read the wall clock themselves.
type Task func(ctx context.Context, now time.Time) (Result, error)

// Job pairs a task with the cron spec it runs on.
type Job struct {
	Name string
	Spec string
	Run  Task
}

// Result counts what one tick did. Skipped rows matched the selection but had
// moved on by the time they were written.
type Result struct {
	Candidates int
	Updated    int
	Skipped    int
	Failed     int
}

const (
	NameBatteryDrain   = "battery-drain"
	NameBatteryCharge  = "battery-charge"
	NameSettleOrders   = "settle-orders"
	NameResetDelivered = "reset-delivered"
)
