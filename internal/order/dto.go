package order

import (
	"github.com/google/uuid"

	"drone-dispatch/internal/common"
)

type PlaceOrderRequest struct {
	DroneID uuid.UUID `json:"drone_id" binding:"required"`
	Items   []Item    `json:"items" binding:"required,min=1,dive"`
}

type ListOrdersRequest struct {
	common.ListQuery
	Status  Status `form:"status" binding:"omitempty,oneof=pending successful aborted delivered failed"`
	DroneID string `form:"drone_id" binding:"omitempty,uuid"`
}

func (r ListOrdersRequest) Filter() Query {
	q := Query{Status: r.Status}
	if id, err := uuid.Parse(r.DroneID); err == nil {
		q.DroneID = &id
	}
	return q
}
