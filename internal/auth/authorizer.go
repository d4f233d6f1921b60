package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/models"
)

// FamilyAuthorizer decides which families a principal may see or manage.
type FamilyAuthorizer interface {
	CanView(ctx context.Context, p Principal, familyID uuid.UUID) (bool, error)
	CanManage(ctx context.Context, p Principal, familyID uuid.UUID) (bool, error)
	// ViewableFamilies lists every family the principal may see. Admins get
	// (nil, nil): no restriction.
	ViewableFamilies(ctx context.Context, p Principal) ([]uuid.UUID, error)
}

// RoleStore is the slice of persistence the authorizer needs.
type RoleStore interface {
	FamilyRole(ctx context.Context, familyID, userID uuid.UUID) (models.FamilyRole, bool, error)
	FamilyCreator(ctx context.Context, familyID uuid.UUID) (uuid.UUID, bool, error)
	FamiliesForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Authorizer grants access from family creatorship and family_roles rows.
// A creator or manager may manage; a creator, manager, or viewer may view.
type Authorizer struct {
	roles RoleStore
}

func NewAuthorizer(roles RoleStore) *Authorizer {
	return &Authorizer{roles: roles}
}

func (a *Authorizer) CanView(ctx context.Context, p Principal, familyID uuid.UUID) (bool, error) {
	if !p.Authenticated {
		return false, nil
	}
	if p.Admin {
		return true, nil
	}
	if creator, ok, err := a.creator(ctx, familyID); err != nil {
		return false, err
	} else if ok && creator == p.UserID {
		return true, nil
	}
	_, ok, err := a.roles.FamilyRole(ctx, familyID, p.UserID)
	if err != nil {
		return false, fmt.Errorf("look up family role: %w", err)
	}
	return ok, nil
}

func (a *Authorizer) CanManage(ctx context.Context, p Principal, familyID uuid.UUID) (bool, error) {
	if !p.Authenticated {
		return false, nil
	}
	if p.Admin {
		return true, nil
	}
	if creator, ok, err := a.creator(ctx, familyID); err != nil {
		return false, err
	} else if ok && creator == p.UserID {
		return true, nil
	}
	role, ok, err := a.roles.FamilyRole(ctx, familyID, p.UserID)
	if err != nil {
		return false, fmt.Errorf("look up family role: %w", err)
	}
	return ok && role == models.FamilyRoleManager, nil
}

func (a *Authorizer) ViewableFamilies(ctx context.Context, p Principal) ([]uuid.UUID, error) {
	if !p.Authenticated {
		return []uuid.UUID{}, nil
	}
	if p.Admin {
		return nil, nil
	}
	ids, err := a.roles.FamiliesForUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list viewable families: %w", err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

func (a *Authorizer) creator(ctx context.Context, familyID uuid.UUID) (uuid.UUID, bool, error) {
	creator, ok, err := a.roles.FamilyCreator(ctx, familyID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("look up family creator: %w", err)
	}
	return creator, ok, nil
}
