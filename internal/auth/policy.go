package auth

// Policy answers capability questions for a deployment. Roles in the admin set
// hold every capability regardless of the static table.
type Policy struct {
	admins map[Role]bool
}

func NewPolicy(adminRoles []Role) *Policy {
	admins := make(map[Role]bool, len(adminRoles))
	for _, r := range adminRoles {
		admins[r] = true
	}
	return &Policy{admins: admins}
}

// PolicyFromNames builds a Policy from configured role names, skipping names
// outside the enum.
func PolicyFromNames(names []string) *Policy {
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		if r, ok := LookupRole(n); ok {
			roles = append(roles, r)
		}
	}
	return NewPolicy(roles)
}

func (p *Policy) IsAdmin(r Role) bool {
	return p.admins[r]
}

func (p *Policy) Can(r Role, c Capability) bool {
	if c == CapAutoApprove {
		return p.admins[r]
	}
	return p.admins[r] || r.Has(c)
}

func (p *Policy) Allows(principal *Principal, c Capability) bool {
	return principal != nil && p.Can(principal.Role, c)
}
