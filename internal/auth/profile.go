package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/internal/users"
	"github.com/retailhive/retailhive-backend/pkg/db"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

// ProfileService reads and edits the caller's own account.
type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
	Update(ctx context.Context, userID uuid.UUID, req ProfileUpdateRequest) (*users.UserDTO, error)
}

type profileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update users.ProfileUpdate) (*models.User, error)
}

type profileService struct {
	repo profileRepository
}

func NewProfileService(repo profileRepository) (ProfileService, error) {
	if repo == nil {
		return nil, errors.New("user repository is required")
	}
	return &profileService{repo: repo}, nil
}

func (s *profileService) Get(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapUserLookup(err)
	}
	return users.FromModel(user), nil
}

func (s *profileService) Update(ctx context.Context, userID uuid.UUID, req ProfileUpdateRequest) (*users.UserDTO, error) {
	update := users.ProfileUpdate{
		FirstName:    trimmed(req.FirstName),
		LastName:     trimmed(req.LastName),
		BusinessName: trimmed(req.BusinessName),
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "email cannot be blank")
		}
		existing, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != userID:
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "A user with that email already exists.")
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		update.Email = &email
	}

	user, err := s.repo.UpdateProfile(ctx, userID, update)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "A user with that email already exists.")
		}
		return nil, mapUserLookup(err)
	}
	return users.FromModel(user), nil
}

func mapUserLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	return &out
}
