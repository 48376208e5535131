package testutil

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/common"
	domainerrors "drone-dispatch/internal/errors"
	"drone-dispatch/internal/medication"
)

// MedicationRepo is an in-memory medication.Repository that enforces the same
// uniqueness rules as the table.
type MedicationRepo struct {
	mu    sync.Mutex
	clock common.Clock
	meds  map[uuid.UUID]*medication.Medication

	// TakenCodes are reported as unavailable even with no row holding them.
	TakenCodes map[string]bool
	// CodeChecks counts IsCodeAvailable calls.
	CodeChecks int
	// Err, when set, is returned from GetByIDs.
	Err error
}

func NewMedicationRepo(clock common.Clock, meds ...*medication.Medication) *MedicationRepo {
	r := &MedicationRepo{clock: clock, meds: map[uuid.UUID]*medication.Medication{}, TakenCodes: map[string]bool{}}
	for _, m := range meds {
		cp := *m
		r.meds[m.ID] = &cp
	}
	return r
}

func (r *MedicationRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.meds)
}

func (r *MedicationRepo) Create(_ context.Context, _ sqlx.ExtContext, m *medication.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.meds {
		sameName := existing.MedicationName == m.MedicationName
		sameCode := m.Code != nil && existing.Code != nil && *existing.Code == *m.Code
		if sameName || sameCode {
			return domainerrors.DuplicateMedication(UniqueViolation("medications_unique"))
		}
	}
	now := r.clock.Now()
	m.CreatedAt, m.UpdatedAt = now, now
	cp := *m
	r.meds[m.ID] = &cp
	return nil
}

func (r *MedicationRepo) IsCodeAvailable(_ context.Context, _ sqlx.ExtContext, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CodeChecks++
	if r.TakenCodes[code] {
		return false, nil
	}
	for _, m := range r.meds {
		if m.Code != nil && *m.Code == code {
			return false, nil
		}
	}
	return true, nil
}

func (r *MedicationRepo) GetByID(_ context.Context, _ sqlx.ExtContext, id uuid.UUID) (*medication.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meds[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (r *MedicationRepo) GetByIDs(_ context.Context, _ sqlx.ExtContext, ids []uuid.UUID) ([]*medication.Medication, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*medication.Medication
	for _, id := range ids {
		if m, ok := r.meds[id]; ok {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MedicationRepo) List(_ context.Context, _ sqlx.ExtContext, filter medication.Query, q common.ListQuery) ([]*medication.Medication, int, error) {
	r.mu.Lock()
	var all []*medication.Medication
	for _, m := range r.meds {
		if filter.MedicationName != "" && m.MedicationName != filter.MedicationName {
			continue
		}
		if filter.Code != "" && (m.Code == nil || *m.Code != filter.Code) {
			continue
		}
		cp := *m
		all = append(all, &cp)
	}
	r.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].MedicationName < all[j].MedicationName })
	return page(all, q)
}
