package drone

import "drone-dispatch/internal/common"

type CreateDroneRequest struct {
	SerialNumber    string  `json:"serial_number" binding:"required,max=100"`
	Model           Model   `json:"model" binding:"required,oneof=lightweight middleweight cruiserweight heavyweight"`
	WeightLimit     float64 `json:"weight_limit" binding:"omitempty,gt=0,lte=500"`
	BatteryCapacity *int    `json:"battery_capacity" binding:"omitempty,min=0,max=100"`
}

type ListDronesRequest struct {
	common.ListQuery
	SerialNumber string `form:"serial_number"`
	Model        Model  `form:"model" binding:"omitempty,oneof=lightweight middleweight cruiserweight heavyweight"`
	State        State  `form:"state" binding:"omitempty,oneof=idle loading loaded delivering delivered returning"`
	IsAvailable  *bool  `form:"is_available"`
}

func (r ListDronesRequest) Filter() Query {
	return Query{
		SerialNumber: r.SerialNumber,
		Model:        r.Model,
		State:        r.State,
		IsAvailable:  r.IsAvailable,
	}
}
