package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/lineage/internal/models"
)

type memRoles struct {
	creators map[uuid.UUID]uuid.UUID
	roles    map[uuid.UUID]map[uuid.UUID]models.FamilyRole
}

func newMemRoles() *memRoles {
	return &memRoles{
		creators: make(map[uuid.UUID]uuid.UUID),
		roles:    make(map[uuid.UUID]map[uuid.UUID]models.FamilyRole),
	}
}

func (m *memRoles) setRole(familyID, userID uuid.UUID, role models.FamilyRole) {
	if m.roles[familyID] == nil {
		m.roles[familyID] = make(map[uuid.UUID]models.FamilyRole)
	}
	m.roles[familyID][userID] = role
}

func (m *memRoles) FamilyRole(_ context.Context, familyID, userID uuid.UUID) (models.FamilyRole, bool, error) {
	role, ok := m.roles[familyID][userID]
	return role, ok, nil
}

func (m *memRoles) FamilyCreator(_ context.Context, familyID uuid.UUID) (uuid.UUID, bool, error) {
	creator, ok := m.creators[familyID]
	return creator, ok, nil
}

func (m *memRoles) FamiliesForUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for fam, creator := range m.creators {
		if creator == userID {
			ids = append(ids, fam)
		}
	}
	for fam, users := range m.roles {
		if _, ok := users[userID]; ok {
			ids = append(ids, fam)
		}
	}
	return ids, nil
}

func TestAuthorizerCreator(t *testing.T) {
	roles := newMemRoles()
	famID := uuid.New()
	creator := uuid.New()
	roles.creators[famID] = creator
	a := NewAuthorizer(roles)
	p := Principal{UserID: creator, Authenticated: true}

	if ok, _ := a.CanManage(context.Background(), p, famID); !ok {
		t.Error("creator must manage their family")
	}
	if ok, _ := a.CanView(context.Background(), p, famID); !ok {
		t.Error("creator must view their family")
	}
}

func TestAuthorizerManager(t *testing.T) {
	roles := newMemRoles()
	famID := uuid.New()
	manager := uuid.New()
	roles.setRole(famID, manager, models.FamilyRoleManager)
	a := NewAuthorizer(roles)
	p := Principal{UserID: manager, Authenticated: true}

	if ok, _ := a.CanManage(context.Background(), p, famID); !ok {
		t.Error("manager must manage")
	}
	if ok, _ := a.CanView(context.Background(), p, famID); !ok {
		t.Error("manager must view")
	}
}

func TestAuthorizerViewer(t *testing.T) {
	roles := newMemRoles()
	famID := uuid.New()
	viewer := uuid.New()
	roles.setRole(famID, viewer, models.FamilyRoleViewer)
	a := NewAuthorizer(roles)
	p := Principal{UserID: viewer, Authenticated: true}

	if ok, _ := a.CanManage(context.Background(), p, famID); ok {
		t.Error("viewer must not manage")
	}
	if ok, _ := a.CanView(context.Background(), p, famID); !ok {
		t.Error("viewer must view")
	}
}

func TestAuthorizerOutsider(t *testing.T) {
	roles := newMemRoles()
	famID := uuid.New()
	a := NewAuthorizer(roles)
	p := Principal{UserID: uuid.New(), Authenticated: true}

	if ok, _ := a.CanView(context.Background(), p, famID); ok {
		t.Error("outsider must not view")
	}
	if ok, _ := a.CanManage(context.Background(), p, famID); ok {
		t.Error("outsider must not manage")
	}
}

func TestAuthorizerUnauthenticated(t *testing.T) {
	roles := newMemRoles()
	famID := uuid.New()
	a := NewAuthorizer(roles)

	if ok, _ := a.CanView(context.Background(), Principal{}, famID); ok {
		t.Error("anonymous must not view")
	}
	ids, err := a.ViewableFamilies(context.Background(), Principal{})
	if err != nil {
		t.Fatalf("ViewableFamilies: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("anonymous must see no families, got %v", ids)
	}
}

func TestAuthorizerAdmin(t *testing.T) {
	roles := newMemRoles()
	famID := uuid.New()
	a := NewAuthorizer(roles)
	p := Principal{UserID: uuid.New(), Admin: true, Authenticated: true}

	if ok, _ := a.CanManage(context.Background(), p, famID); !ok {
		t.Error("admin must manage anything")
	}
	ids, err := a.ViewableFamilies(context.Background(), p)
	if err != nil {
		t.Fatalf("ViewableFamilies: %v", err)
	}
	if ids != nil {
		t.Errorf("admin must be unrestricted (nil), got %v", ids)
	}
}

func TestViewableFamilies(t *testing.T) {
	roles := newMemRoles()
	created := uuid.New()
	viewed := uuid.New()
	other := uuid.New()
	user := uuid.New()
	roles.creators[created] = user
	roles.creators[other] = uuid.New()
	roles.setRole(viewed, user, models.FamilyRoleViewer)
	a := NewAuthorizer(roles)

	ids, err := a.ViewableFamilies(context.Background(), Principal{UserID: user, Authenticated: true})
	if err != nil {
		t.Fatalf("ViewableFamilies: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 families, got %v", ids)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[created] || !seen[viewed] || seen[other] {
		t.Errorf("unexpected family set: %v", ids)
	}
}
