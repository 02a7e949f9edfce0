// Package rbac holds the static role tables and the predicates route
// handlers use to allow or deny an action. The tables are read-only after
// init and safe for concurrent use.
package rbac

import (
	"slices"
	"strings"
)

type Role string

const (
	RoleDeveloper   Role = "developer"
	RoleDirector    Role = "director"
	RoleVP          Role = "vp"
	RoleHeadOfSales Role = "head_of_sales"
	RoleManager     Role = "manager"
	RoleASM         Role = "asm"
)

// Check is a capability predicate over a normalized role.
type Check func(Role) bool

var managerRoles = []Role{RoleDeveloper, RoleDirector, RoleVP, RoleHeadOfSales, RoleManager}

// legacy spellings seen in stored profiles and older authorization tables
var aliases = map[string]Role{
	"head of sales":      RoleHeadOfSales,
	"head-of-sales":      RoleHeadOfSales,
	"headofsales":        RoleHeadOfSales,
	"area_sales_manager": RoleASM,
	"area sales manager": RoleASM,
}

// Normalize maps any stored spelling onto its canonical role. Unknown roles
// are returned trimmed and lowercased.
func Normalize(raw string) Role {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if r, ok := aliases[s]; ok {
		return r
	}
	return Role(s)
}

func (r Role) String() string { return string(r) }

func IsManager(role Role) bool {
	n := Normalize(string(role))
	if n == "" {
		return false
	}
	return slices.Contains(managerRoles, n)
}

func IsDeveloper(role Role) bool   { return Normalize(string(role)) == RoleDeveloper }
func IsDirector(role Role) bool    { return Normalize(string(role)) == RoleDirector }
func IsHeadOfSales(role Role) bool { return Normalize(string(role)) == RoleHeadOfSales }
func IsASM(role Role) bool         { return Normalize(string(role)) == RoleASM }

func CanSetTargets(role Role) bool  { return IsManager(role) }
func CanViewAllData(role Role) bool { return IsManager(role) }

func CanManageUsers(role Role) bool {
	return IsDeveloper(role) || IsDirector(role)
}

func CanDeleteContacts(role Role) bool {
	n := Normalize(string(role))
	return n == RoleDirector || n == RoleVP || n == RoleDeveloper
}

// Any returns a Check passing when role is one of roles.
func Any(roles ...Role) Check {
	canon := make([]Role, 0, len(roles))
	for _, r := range roles {
		canon = append(canon, Normalize(string(r)))
	}
	return func(role Role) bool {
		n := Normalize(string(role))
		return n != "" && slices.Contains(canon, n)
	}
}
