package permission

import (
	"fmt"
	"maps"
	"slices"
)

// RoleTable maps team roles to permission masks. It is immutable once built.
type RoleTable struct {
	registry *Registry
	masks    map[string]Mask
}

func NewRoleTable(registry *Registry, roles map[string][]string) (*RoleTable, error) {
	t := &RoleTable{registry: registry, masks: make(map[string]Mask, len(roles))}
	for role, perms := range roles {
		if role == "" {
			return nil, fmt.Errorf("%w: role", ErrEmptyName)
		}
		mask, err := registry.MaskOf(perms...)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", role, err)
		}
		t.masks[role] = mask
	}
	return t, nil
}

func (t *RoleTable) Mask(role string) (Mask, bool) {
	m, ok := t.masks[role]
	return m, ok
}

// Has reports whether role grants perm. Unknown roles and permissions grant nothing.
func (t *RoleTable) Has(role, perm string) bool {
	mask, ok := t.masks[role]
	if !ok {
		return false
	}
	bit, ok := t.registry.Bit(perm)
	return ok && mask.Has(bit)
}

func (t *RoleTable) Permissions(role string) []string {
	mask, ok := t.masks[role]
	if !ok {
		return nil
	}
	return t.registry.Names(mask)
}

// Roles lists the role names in sorted order.
func (t *RoleTable) Roles() []string {
	return slices.Sorted(maps.Keys(t.masks))
}

// Require fails unless every named role is defined.
func (t *RoleTable) Require(roles ...string) error {
	for _, role := range roles {
		if _, ok := t.masks[role]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRoleRef, role)
		}
	}
	return nil
}
