package pipeline

import (
	"fmt"
	"strings"

	"github.com/keyforge/keyforge/forge/dname"
)

func valueOrDash(value string) string {
	if len(value) == 0 {
		return "-"
	}
	return value
}

// Summary renders the identity and credentials the way they are
// persisted and delivered: seven labelled identity lines, a blank
// line, then alias and password. Empty fields print as a dash.
func Summary(id dname.Identity, alias, password string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "First name: %s\n", valueOrDash(id.FirstName))
	fmt.Fprintf(&sb, "Last name: %s\n", valueOrDash(id.LastName))
	fmt.Fprintf(&sb, "Organization unit: %s\n", valueOrDash(id.OrgUnit))
	fmt.Fprintf(&sb, "Organization: %s\n", valueOrDash(id.Org))
	fmt.Fprintf(&sb, "City: %s\n", valueOrDash(id.City))
	fmt.Fprintf(&sb, "State: %s\n", valueOrDash(id.State))
	fmt.Fprintf(&sb, "Country code: %s\n", valueOrDash(id.CountryCode))
	fmt.Fprintf(&sb, "\nAlias: %s\nPassword: %s", alias, password)

	return sb.String()
}
