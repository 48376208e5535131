package medication

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"drone-dispatch/internal/common"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// NameRule is shown to clients when a medication name fails the medname tag.
const NameRule = "Name can only contain letters, numbers, hyphens (-), and underscores (_)"

// CreateMedicationRequest accepts JSON or form bodies. Image is the path of an
// asset that has already been uploaded to the asset store.
type CreateMedicationRequest struct {
	MedicationName string  `json:"medication_name" form:"medication_name" binding:"required,max=255,medname"`
	Weight         float64 `json:"weight" form:"weight" binding:"required,gt=0"`
	Image          string  `json:"image" form:"image" binding:"omitempty,max=2048"`
}

type ListMedicationsRequest struct {
	common.ListQuery
	MedicationName string `form:"medication_name"`
	Code           string `form:"code"`
}

func (r ListMedicationsRequest) Filter() Query {
	return Query{MedicationName: r.MedicationName, Code: r.Code}
}

var registerOnce sync.Once

// RegisterValidators installs the medname tag on gin's validator engine.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("medname", func(fl validator.FieldLevel) bool {
			return namePattern.MatchString(fl.Field().String())
		})
	})
}
