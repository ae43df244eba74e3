package auth

import "strings"

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAdmin      Role = "Admin"
	RoleManager    Role = "Manager"
	RoleChemist    Role = "Chemist"
	RoleSales      Role = "Sales"
	RoleViewer     Role = "Viewer"
)

var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleChemist, RoleSales, RoleViewer}

type Capability string

const (
	CapAutoApprove     Capability = "auto_approve"
	CapApprove         Capability = "approve"
	CapManageUsers     Capability = "manage_users"
	CapManageSettings  Capability = "manage_settings"
	CapWriteFormulas   Capability = "write_formulas"
	CapWriteQuotes     Capability = "write_quotes"
	CapUploadResources Capability = "upload_resources"
	CapViewActivity    Capability = "view_activity"
	CapReconcile       Capability = "reconcile"
)

var AllCapabilities = []Capability{
	CapAutoApprove, CapApprove, CapManageUsers, CapManageSettings,
	CapWriteFormulas, CapWriteQuotes, CapUploadResources, CapViewActivity, CapReconcile,
}

var capabilities = map[Role][]Capability{
	RoleSuperAdmin: AllCapabilities,
	RoleAdmin:      AllCapabilities,
	RoleManager: {
		CapApprove, CapWriteFormulas, CapWriteQuotes, CapUploadResources, CapViewActivity,
	},
	RoleChemist: {CapWriteFormulas, CapUploadResources},
	RoleSales:   {CapWriteQuotes, CapUploadResources},
	RoleViewer:  {},
}

var roleLookup = func() map[string]Role {
	m := make(map[string]Role, len(AllRoles)*2)
	for _, r := range AllRoles {
		m[string(r)] = r
		m[strings.ToLower(string(r))] = r
	}
	return m
}()

// ParseRole maps a stored or token-supplied role name to the enum. Unknown
// names resolve to Viewer.
func ParseRole(s string) Role {
	if r, ok := LookupRole(s); ok {
		return r
	}
	return RoleViewer
}

// LookupRole is ParseRole without the fallback.
func LookupRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	if r, ok := roleLookup[s]; ok {
		return r, true
	}
	r, ok := roleLookup[strings.ToLower(s)]
	return r, ok
}

func (r Role) Capabilities() []Capability {
	return capabilities[r]
}

func (r Role) Has(c Capability) bool {
	for _, have := range capabilities[r] {
		if have == c {
			return true
		}
	}
	return false
}
