package rbac

import (
	"slices"
	"strings"
)

const (
	CompanyBenz     = "benz"
	CompanyErgopack = "ergopack"
)

type member struct {
	Name      string
	Region    string
	Companies []string
}

var headsOfSales = []member{
	{Name: "Pulak Biswas", Companies: []string{CompanyBenz}},
	{Name: "Lokesh", Companies: []string{CompanyErgopack}},
}

var asms = []member{
	{Name: "Madhya Pradesh", Region: "Madhya Pradesh", Companies: []string{CompanyBenz}},
	{Name: "Rajasthan", Region: "Rajasthan", Companies: []string{CompanyBenz}},
	{Name: "Karnataka", Region: "Karnataka", Companies: []string{CompanyBenz}},
	{Name: "Maharashtra", Region: "Maharashtra", Companies: []string{CompanyBenz}},
	{Name: "Noida", Region: "Noida", Companies: []string{CompanyBenz}},
	{Name: "West Zone", Region: "West Zone", Companies: []string{CompanyBenz}},
}

// ASMNames lists the regional sales accounts shown in filters and accepted as
// target owners.
func ASMNames() []string {
	out := make([]string, 0, len(asms))
	for _, a := range asms {
		out = append(out, a.Name)
	}
	return out
}

func IsValidTargetSalesperson(name string) bool {
	return slices.Contains(ASMNames(), name)
}

// HasCompanyAccess reports whether userName may see company data. Unknown
// users only see benz.
func HasCompanyAccess(role Role, userName, company string) bool {
	if IsDeveloper(role) || IsDirector(role) {
		return true
	}

	for _, list := range [][]member{headsOfSales, asms} {
		for _, m := range list {
			if strings.EqualFold(m.Name, userName) {
				return slices.Contains(m.Companies, company)
			}
		}
	}
	return company == CompanyBenz
}

type AccessFilter struct {
	FilterByUser   bool   `json:"filterByUser"`
	FilterByRegion bool   `json:"filterByRegion"`
	UserID         string `json:"userId,omitempty"`
	RegionName     string `json:"regionName,omitempty"`
}

// DataAccessFilter scopes non-managers to their own records. An ASM account
// is named after its region.
func DataAccessFilter(role Role, userID, userName string) AccessFilter {
	if IsManager(role) {
		return AccessFilter{}
	}
	return AccessFilter{
		FilterByUser:   true,
		FilterByRegion: true,
		UserID:         userID,
		RegionName:     userName,
	}
}
