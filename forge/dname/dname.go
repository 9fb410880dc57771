// Encoding and decoding of keytool-style distinguished names.
//
// keytool consumes and emits DN strings of the form
//
//	CN=John Doe, OU=Engineering, O=Acme, L=Springfield, S=Illinois, C=US
//
// with backslash escaping for literal backslashes and commas. This is a
// small subset of RFC 2253: only the seven attributes above are mapped,
// keys are matched case-sensitively and whitespace around segments is
// not significant.
package dname

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoIdentity is returned by [Decode] when the input contains no
// parseable KEY=value segment at all.
var ErrNoIdentity = errors.New("dname: no identity attributes found")

// Identity holds the subject fields embedded in a certificate.
// The empty string is a valid "unknown" value for every field.
type Identity struct {
	FirstName   string
	LastName    string
	OrgUnit     string
	Org         string
	City        string
	State       string
	CountryCode string
}

// Empty reports whether no field carries a value.
func (id Identity) Empty() bool {
	return id == Identity{}
}

// CommonName joins first and last name the way keytool displays them.
// Single-token names yield just that token.
func (id Identity) CommonName() string {
	if id.FirstName == id.LastName {
		return id.FirstName
	}
	return id.FirstName + " " + id.LastName
}

func escape(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `,`, `\,`)
}

func unescape(value string) string {
	value = strings.ReplaceAll(value, `\,`, `,`)
	value = strings.ReplaceAll(value, `\\`, `\`)
	return strings.TrimSpace(value)
}

// Encode serializes an identity into a DN string suitable for
// keytool's -dname argument. Field order is fixed; [Decode] relies on
// the same attribute set.
func Encode(id Identity) string {
	return fmt.Sprintf("CN=%s, OU=%s, O=%s, L=%s, S=%s, C=%s",
		escape(id.CommonName()),
		escape(id.OrgUnit),
		escape(id.Org),
		escape(id.City),
		escape(id.State),
		escape(id.CountryCode))
}

// splitSegments splits a DN on unescaped commas. A backslash escapes
// the following character, so "\," and "\\" never act as delimiters.
// Empty segments are dropped.
func splitSegments(owner string) []string {
	parts := make([]string, 0, 8)
	var current strings.Builder
	escaped := false

	for _, ch := range owner {
		if escaped {
			current.WriteRune(ch)
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			current.WriteRune(ch)
			escaped = true
		case ',':
			if part := strings.TrimSpace(current.String()); len(part) > 0 {
				parts = append(parts, part)
			}
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}

	if part := strings.TrimSpace(current.String()); len(part) > 0 {
		parts = append(parts, part)
	}

	return parts
}

// Decode parses a DN string back into an [Identity].
//
// Keys are matched case-sensitively; both S and ST are accepted for the
// state attribute, matching keytool output variants. Unknown keys are
// ignored and missing keys map to the empty string. The CN value is
// split on the first space for the first name and the last space for
// the last name, so single-token names end up in both fields.
//
// Decode only fails with [ErrNoIdentity] when not a single KEY=value
// segment can be extracted.
func Decode(owner string) (Identity, error) {
	attrs := make(map[string]string, 8)
	for _, segment := range splitSegments(owner) {
		key, value, found := strings.Cut(segment, "=")
		if !found {
			continue
		}
		attrs[strings.TrimSpace(key)] = unescape(value)
	}

	if len(attrs) == 0 {
		return Identity{}, ErrNoIdentity
	}

	var first, last string
	if cn := attrs["CN"]; len(cn) > 0 {
		fields := strings.Split(cn, " ")
		first = fields[0]
		last = fields[len(fields)-1]
	}

	state, ok := attrs["S"]
	if !ok || len(state) == 0 {
		state = attrs["ST"]
	}

	return Identity{
		FirstName:   first,
		LastName:    last,
		OrgUnit:     attrs["OU"],
		Org:         attrs["O"],
		City:        attrs["L"],
		State:       state,
		CountryCode: attrs["C"],
	}, nil
}
