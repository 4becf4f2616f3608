package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/Hyllekvist/dripdrops/internal/clock"
	"github.com/Hyllekvist/dripdrops/internal/domain"
)

type CatalogRepository interface {
	CreateItem(ctx context.Context, item domain.Item) error
	ListItems(ctx context.Context) ([]domain.Item, error)
	ListItemsByDrop(ctx context.Context, dropID string) ([]domain.Item, error)
	ListReservationsByItem(ctx context.Context, itemID string) ([]domain.Reservation, error)
}

// CatalogService provisions catalogue items and exposes the reservation audit
// trail. It is the admin-facing CRUD edge around the ledger; it never touches
// sold or reserved_until.
type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateItemInput struct {
	Title      string
	Brand      string
	PriceCents int64
	DropID     string
}

func (s *CatalogService) CreateItem(ctx context.Context, in CreateItemInput) (domain.Item, error) {
	if in.Title == "" {
		return domain.Item{}, domain.ErrTitleRequired
	}
	if in.PriceCents <= 0 {
		return domain.Item{}, domain.ErrInvalidPrice
	}

	item := domain.Item{
		ID:         uuid.NewString(),
		DropID:     in.DropID,
		Title:      in.Title,
		Brand:      in.Brand,
		PriceCents: in.PriceCents,
		CreatedAt:  s.clock.Now(),
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

func (s *CatalogService) ListItems(ctx context.Context, dropID string) ([]domain.Item, error) {
	if dropID == "" {
		return s.repo.ListItems(ctx)
	}
	return s.repo.ListItemsByDrop(ctx, dropID)
}

func (s *CatalogService) ListReservations(ctx context.Context, itemID string) ([]domain.Reservation, error) {
	if itemID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListReservationsByItem(ctx, itemID)
}
