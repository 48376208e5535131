package medication

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"drone-dispatch/internal/common"
	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/repo/postgres"
)

const columns = `id, medication_name, weight, image, code, is_archived, created_at, updated_at`

var orderableColumns = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"medication_name": true,
	"weight":          true,
	"code":            true,
}

type Repository interface {
	Create(ctx context.Context, ext sqlx.ExtContext, m *Medication) error
	IsCodeAvailable(ctx context.Context, ext sqlx.ExtContext, code string) (bool, error)
	GetByID(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID) (*Medication, error)
	GetByIDs(ctx context.Context, ext sqlx.ExtContext, ids []uuid.UUID) ([]*Medication, error)
	List(ctx context.Context, ext sqlx.ExtContext, filter Query, q common.ListQuery) ([]*Medication, int, error)
}

type medicationRepository struct{}

func NewRepository() Repository {
	return &medicationRepository{}
}

// Create inserts m and refreshes it with the stored row. A unique violation on
// name or code comes back as the duplicate-medication domain error.
func (r *medicationRepository) Create(ctx context.Context, ext sqlx.ExtContext, m *Medication) error {
	query := fmt.Sprintf(`INSERT INTO medications (id, medication_name, weight, image, code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, columns)
	err := sqlx.GetContext(ctx, ext, m, query, m.ID, m.MedicationName, m.Weight, m.Image, m.Code)
	if postgres.IsUniqueViolation(err) {
		return domainerrors.DuplicateMedication(err)
	}
	return err
}

func (r *medicationRepository) IsCodeAvailable(ctx context.Context, ext sqlx.ExtContext, code string) (bool, error) {
	var count int
	if err := sqlx.GetContext(ctx, ext, &count, `SELECT COUNT(*) FROM medications WHERE code = $1`, code); err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *medicationRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id uuid.UUID) (*Medication, error) {
	var m Medication
	query := fmt.Sprintf(`SELECT %s FROM medications WHERE id = $1`, columns)
	if err := sqlx.GetContext(ctx, ext, &m, query, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *medicationRepository) GetByIDs(ctx context.Context, ext sqlx.ExtContext, ids []uuid.UUID) ([]*Medication, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	var meds []*Medication
	query := fmt.Sprintf(`SELECT %s FROM medications WHERE id = ANY($1::uuid[])`, columns)
	if err := sqlx.SelectContext(ctx, ext, &meds, query, pq.Array(keys)); err != nil {
		return nil, err
	}
	return meds, nil
}

func (r *medicationRepository) List(ctx context.Context, ext sqlx.ExtContext, filter Query, q common.ListQuery) ([]*Medication, int, error) {
	var where common.Where
	if filter.MedicationName != "" {
		where.Add("medication_name = $%d", filter.MedicationName)
	}
	if filter.Code != "" {
		where.Add("code = $%d", filter.Code)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM medications%s%s`, columns, where.String(), q.OrderClause(orderableColumns))

	if q.NoPaginate {
		var meds []*Medication
		if err := sqlx.SelectContext(ctx, ext, &meds, dataQuery, where.Args...); err != nil {
			return nil, 0, err
		}
		return meds, len(meds), nil
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM medications%s`, where.String())
	if err := sqlx.GetContext(ctx, ext, &total, countQuery, where.Args...); err != nil {
		return nil, 0, err
	}

	dataQuery += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, where.Next(), where.Next()+1)
	args := append(where.Args, q.Limit, q.Offset)

	var meds []*Medication
	if err := sqlx.SelectContext(ctx, ext, &meds, dataQuery, args...); err != nil {
		return nil, 0, err
	}
	return meds, total, nil
}
