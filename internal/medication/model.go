package medication

import (
	"time"

	"github.com/google/uuid"
)

type Medication struct {
	ID             uuid.UUID `db:"id" json:"id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	Weight         float64   `db:"weight" json:"weight"`
	Image          *string   `db:"image" json:"image"`
	Code           *string   `db:"code" json:"code"`
	IsArchived     bool      `db:"is_archived" json:"is_archived"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type Query struct {
	MedicationName string
	Code           string
}

func New(name string, weight float64, image string, code *string) *Medication {
	m := &Medication{
		ID:             uuid.New(),
		MedicationName: name,
		Weight:         weight,
		Code:           code,
	}
	if image != "" {
		m.Image = &image
	}
	return m
}
