package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"drone-dispatch/internal/common"
	domainerrors "drone-dispatch/internal/errors"
)

type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*Details, error)
	List(ctx context.Context, filter Query, q common.ListQuery) ([]*Order, int, error)
}

type service struct {
	repo  Repository
	lines LineRepository
	db    *sqlx.DB
}

func NewOrderService(repo Repository, lines LineRepository, db *sqlx.DB) Service {
	return &service{repo: repo, lines: lines, db: db}
}

// -------------------------------------------------------------------------------------------------
func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.OrderNotFound()
	}
	if err != nil {
		return nil, domainerrors.NewInternal("failed to fetch order", err)
	}
	return o, nil
}

// -------------------------------------------------------------------------------------------------
func (s *service) GetDetails(ctx context.Context, id uuid.UUID) (*Details, error) {
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.lines.ListByOrderID(ctx, s.db, id)
	if err != nil {
		return nil, domainerrors.NewInternal("failed to fetch order lines", err)
	}
	if lines == nil {
		lines = []*Line{}
	}
	return &Details{Order: o, Items: lines}, nil
}

// -------------------------------------------------------------------------------------------------
func (s *service) List(ctx context.Context, filter Query, q common.ListQuery) ([]*Order, int, error) {
	q.Normalize()
	orders, total, err := s.repo.List(ctx, s.db, filter, q)
	if err != nil {
		return nil, 0, domainerrors.NewInternal("failed to list orders", err)
	}
	return orders, total, nil
}
