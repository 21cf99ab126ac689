package application

import (
	"context"
	"strings"

	"github.com/example/storefront/internal/catalog/domain"
	"github.com/shopspring/decimal"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type Service struct {
	repo ProductRepository
}

func NewService(repo ProductRepository) *Service {
	return &Service{repo: repo}
}

// Page is a paginated slice of the catalog, newest products first.
type Page struct {
	Products   []domain.Product
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

func (s *Service) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := validateFields(&p.Name, &p.Price, &p.AvailableCount); err != nil {
		return domain.Product{}, err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) List(ctx context.Context, page, limit int) (Page, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		return Page{}, &domain.ValidationError{Msg: "limit must be 100 or less"}
	}

	products, total, err := s.repo.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return Page{}, err
	}
	totalPages := (total + limit - 1) / limit
	return Page{
		Products:   products,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Replace(ctx context.Context, id int64, p domain.Product) (domain.Product, error) {
	if err := validateFields(&p.Name, &p.Price, &p.AvailableCount); err != nil {
		return domain.Product{}, err
	}
	return s.repo.Replace(ctx, id, p)
}

func (s *Service) Patch(ctx context.Context, id int64, patch domain.Patch) (domain.Product, error) {
	if err := validateFields(patch.Name, patch.Price, patch.AvailableCount); err != nil {
		return domain.Product{}, err
	}
	return s.repo.Patch(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Quantities resolves stock levels for the requested product ids. Unknown ids
// are omitted from the result rather than treated as an error.
func (s *Service) Quantities(ctx context.Context, ids []int64) ([]domain.Quantity, error) {
	for _, id := range ids {
		if id <= 0 {
			return nil, &domain.ValidationError{Msg: "product ids must be positive"}
		}
	}
	return s.repo.Quantities(ctx, ids)
}

func validateFields(name *string, price *decimal.Decimal, count *int) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return &domain.ValidationError{Msg: "name must not be empty"}
	}
	if price != nil && price.IsNegative() {
		return &domain.ValidationError{Msg: "price must not be negative"}
	}
	if count != nil && *count < 0 {
		return &domain.ValidationError{Msg: "availableCount must not be negative"}
	}
	return nil
}
