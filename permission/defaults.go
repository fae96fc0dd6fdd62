package permission

// Permission names checked by the CRM services.
const (
	ContactsRead    = "contacts.read"
	ContactsWrite   = "contacts.write"
	CompaniesRead   = "companies.read"
	CompaniesWrite  = "companies.write"
	DealsRead       = "deals.read"
	DealsWrite      = "deals.write"
	ActivitiesRead  = "activities.read"
	ActivitiesWrite = "activities.write"
	TeamInvite      = "team.invite"
	TeamManage      = "team.manage"
	AuditRead       = "audit.read"
)

// Team roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// All lists every permission in registration order.
func All() []string {
	return []string{
		ContactsRead, ContactsWrite,
		CompaniesRead, CompaniesWrite,
		DealsRead, DealsWrite,
		ActivitiesRead, ActivitiesWrite,
		TeamInvite, TeamManage,
		AuditRead,
	}
}

// DefaultRoles returns the permissions granted to each team role.
func DefaultRoles() map[string][]string {
	read := []string{ContactsRead, CompaniesRead, DealsRead, ActivitiesRead}
	write := []string{ContactsWrite, CompaniesWrite, DealsWrite, ActivitiesWrite}

	member := append(append([]string{}, read...), write...)
	admin := append(append([]string{}, member...), TeamInvite, AuditRead)

	return map[string][]string{
		RoleOwner:  All(),
		RoleAdmin:  admin,
		RoleMember: member,
		RoleViewer: read,
	}
}

// InvitableRoles lists the roles an invite may grant. Ownership is never granted by invite.
func InvitableRoles() []string {
	return []string{RoleAdmin, RoleMember, RoleViewer}
}

// Defaults builds the registry and role table for the default roles.
func Defaults() (*Registry, *RoleTable, error) {
	return Build(All(), DefaultRoles())
}

// Build creates a registry from perms and a role table that must define every team role.
func Build(perms []string, roles map[string][]string) (*Registry, *RoleTable, error) {
	registry, err := NewRegistry(perms...)
	if err != nil {
		return nil, nil, err
	}
	table, err := NewRoleTable(registry, roles)
	if err != nil {
		return nil, nil, err
	}
	if err := table.Require(RoleOwner, RoleAdmin, RoleMember, RoleViewer); err != nil {
		return nil, nil, err
	}
	return registry, table, nil
}
