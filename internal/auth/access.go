package auth

import (
	"net/http"

	"github.com/benzpackaging/benztraq-auth/internal/httpx"
	"github.com/benzpackaging/benztraq-auth/internal/rbac"
)

type accessResponse struct {
	Role              rbac.Role         `json:"role"`
	IsManager         bool              `json:"isManager"`
	CanSetTargets     bool              `json:"canSetTargets"`
	CanViewAllData    bool              `json:"canViewAllData"`
	CanManageUsers    bool              `json:"canManageUsers"`
	CanDeleteContacts bool              `json:"canDeleteContacts"`
	Companies         map[string]bool   `json:"companies"`
	DataFilter        rbac.AccessFilter `json:"dataFilter"`
}

type salespeopleResponse struct {
	Success     bool     `json:"success"`
	Salespeople []string `json:"salespeople"`
}

// Access describes what the caller may do. Mounted behind RequireUser.
func (a *authenticationHandler) Access(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accessFor(u))
}

// Salespeople lists the ASM accounts for manager filters.
func (a *authenticationHandler) Salespeople(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, salespeopleResponse{Success: true, Salespeople: rbac.ASMNames()})
}

func accessFor(u *UserIdentity) accessResponse {
	role := u.Role
	return accessResponse{
		Role:              role,
		IsManager:         rbac.IsManager(role),
		CanSetTargets:     rbac.CanSetTargets(role),
		CanViewAllData:    rbac.CanViewAllData(role),
		CanManageUsers:    rbac.CanManageUsers(role),
		CanDeleteContacts: rbac.CanDeleteContacts(role),
		Companies: map[string]bool{
			rbac.CompanyBenz:     rbac.HasCompanyAccess(role, u.FullName, rbac.CompanyBenz),
			rbac.CompanyErgopack: rbac.HasCompanyAccess(role, u.FullName, rbac.CompanyErgopack),
		},
		DataFilter: rbac.DataAccessFilter(role, u.ID, u.FullName),
	}
}
