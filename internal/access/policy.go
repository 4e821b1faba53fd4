// Package access decides what a caller may do with catalog resources.
package access

import (
	"github.com/google/uuid"

	"github.com/retailhive/retailhive-backend/pkg/db/models"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

const (
	msgAuthRequired = "Authentication required"
	msgForbidden    = "You do not have permission to perform this action."
)

// Principal is the authenticated caller. The zero value is anonymous.
type Principal struct {
	UserID  uuid.UUID
	Role    enums.Role
	IsStaff bool
}

func (p Principal) Authenticated() bool {
	return p.UserID != uuid.Nil
}

// IsAdmin is true for admins and staff superusers.
func (p Principal) IsAdmin() bool {
	return p.Authenticated() && (p.Role == enums.RoleAdmin || p.IsStaff)
}

func (p Principal) IsRetailer() bool {
	return p.Authenticated() && p.Role == enums.RoleRetailer
}

// HasAnyRole reports whether p carries one of roles. Staff always passes.
func (p Principal) HasAnyRole(roles ...enums.Role) bool {
	if !p.Authenticated() {
		return false
	}
	if p.IsStaff {
		return true
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// RequireAuthenticated returns Unauthorized for anonymous callers.
func RequireAuthenticated(p Principal) error {
	if !p.Authenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, msgAuthRequired)
	}
	return nil
}

// CanWriteProducts gates product create/update/delete.
func CanWriteProducts(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.IsAdmin() || p.IsRetailer() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, msgForbidden)
}

// CanMutateProduct applies the ownership rule on top of CanWriteProducts.
func CanMutateProduct(p Principal, product *models.Product) error {
	if err := CanWriteProducts(p); err != nil {
		return err
	}
	if p.IsAdmin() {
		return nil
	}
	if product != nil && product.OwnedBy(p.UserID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, msgForbidden)
}

// CanModerateProducts gates approval and rejection.
func CanModerateProducts(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.IsAdmin() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, msgForbidden)
}

// CanManageCategories gates category writes.
func CanManageCategories(p Principal) error {
	return CanModerateProducts(p)
}

// ApplyCreateDefaults forces retailer-created products to be owned by the
// creator and unapproved, whatever the payload said.
func ApplyCreateDefaults(p Principal, product *models.Product) {
	if product == nil {
		return
	}
	if p.IsRetailer() && !p.IsStaff {
		owner := p.UserID
		product.RetailerID = &owner
		product.IsApproved = false
	}
}
