package medication

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/common"
	domainerrors "drone-dispatch/internal/errors"
)

type Service interface {
	Create(ctx context.Context, req CreateMedicationRequest) (*Medication, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	List(ctx context.Context, filter Query, q common.ListQuery) ([]*Medication, int, error)
}

// CodeGenerator produces candidate medication codes.
type CodeGenerator func(now time.Time) string

type service struct {
	repo     Repository
	db       *sqlx.DB
	clock    common.Clock
	generate CodeGenerator
}

func NewMedicationService(repo Repository, db *sqlx.DB, clock common.Clock, generate CodeGenerator) Service {
	if generate == nil {
		generate = func(now time.Time) string { return GenerateDatedShortCode(CodePrefix, now) }
	}
	return &service{repo: repo, db: db, clock: clock, generate: generate}
}

func (s *service) Create(ctx context.Context, req CreateMedicationRequest) (*Medication, error) {
	code, err := s.nextCode(ctx)
	if err != nil {
		return nil, domainerrors.NewInternal("failed to generate medication code", err)
	}

	m := New(req.MedicationName, req.Weight, req.Image, code)
	if err := s.repo.Create(ctx, s.db, m); err != nil {
		var de *domainerrors.DomainError
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, domainerrors.NewInternal("failed to create medication", err)
	}
	return m, nil
}

// nextCode draws a code and re-draws on collision, up to maxCodeChecks times.
// When every candidate is taken the medication is stored without a code.
// TODO: confirm with product whether exhausting the retries should fail the
// request instead of storing a medication without a code.
func (s *service) nextCode(ctx context.Context) (*string, error) {
	now := s.clock.Now()
	code := s.generate(now)
	available, err := s.repo.IsCodeAvailable(ctx, s.db, code)
	if err != nil {
		return nil, err
	}

	for retries := 0; retries < maxCodeChecks && !available; retries++ {
		code = s.generate(now)
		if available, err = s.repo.IsCodeAvailable(ctx, s.db, code); err != nil {
			return nil, err
		}
	}

	if !available {
		slog.WarnContext(ctx, "medication code space exhausted, storing without code",
			slog.Int("attempts", maxCodeChecks+1),
		)
		return nil, nil
	}
	return &code, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := s.repo.GetByID(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.MedicationNotFound()
	}
	if err != nil {
		return nil, domainerrors.NewInternal("failed to fetch medication", err)
	}
	return m, nil
}

func (s *service) List(ctx context.Context, filter Query, q common.ListQuery) ([]*Medication, int, error) {
	q.Normalize()
	meds, total, err := s.repo.List(ctx, s.db, filter, q)
	if err != nil {
		return nil, 0, domainerrors.NewInternal("failed to list medications", err)
	}
	return meds, total, nil
}
