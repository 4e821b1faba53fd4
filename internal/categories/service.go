package categories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/internal/access"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

const maxNameLength = 100

// CategoryDTO is the API shape of a category.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CategoryInput is the create/update payload.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

func FromModel(c models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt}
}

// Service exposes public reads and admin writes.
type Service interface {
	List(ctx context.Context) ([]CategoryDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	Create(ctx context.Context, caller access.Principal, input CategoryInput) (*CategoryDTO, error)
	Update(ctx context.Context, caller access.Principal, id uuid.UUID, input CategoryInput) (*CategoryDTO, error)
	Delete(ctx context.Context, caller access.Principal, id uuid.UUID) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("category repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookup(err)
	}
	dto := FromModel(*category)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, caller access.Principal, input CategoryInput) (*CategoryDTO, error) {
	if err := access.CanManageCategories(caller); err != nil {
		return nil, err
	}
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	category := &models.Category{Name: name, Description: strings.TrimSpace(input.Description)}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create category")
	}
	dto := FromModel(*category)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, caller access.Principal, id uuid.UUID, input CategoryInput) (*CategoryDTO, error) {
	if err := access.CanManageCategories(caller); err != nil {
		return nil, err
	}
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, name, strings.TrimSpace(input.Description)); err != nil {
		return nil, mapLookup(err)
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, caller access.Principal, id uuid.UUID) error {
	if err := access.CanManageCategories(caller); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapLookup(err)
	}
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name may not be blank")
	}
	if len([]rune(name)) > maxNameLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is too long")
	}
	return name, nil
}

func mapLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Not found.")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
}
