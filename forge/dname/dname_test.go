package dname

import (
	"errors"
	"reflect"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := map[string]Identity{
		"CN=John Doe, OU=Engineering, O=Acme, L=Springfield, S=Illinois, C=US": {
			FirstName:   "John",
			LastName:    "Doe",
			OrgUnit:     "Engineering",
			Org:         "Acme",
			City:        "Springfield",
			State:       "Illinois",
			CountryCode: "US",
		},
		`CN=John Doe, OU=R\,D, O=Acme\\Sons, L=Springfield, S=Illinois, C=US`: {
			FirstName:   "John",
			LastName:    "Doe",
			OrgUnit:     "R,D",
			Org:         `Acme\Sons`,
			City:        "Springfield",
			State:       "Illinois",
			CountryCode: "US",
		},
		"CN=, OU=, O=, L=, S=, C=": {},
	}

	for expect, id := range tests {
		if got := Encode(id); got != expect {
			t.Errorf("expected '%s', got '%s'", expect, got)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := map[string]Identity{
		"CN=John Doe, OU=Engineering, O=Acme, L=Springfield, S=Illinois, C=US": {
			FirstName:   "John",
			LastName:    "Doe",
			OrgUnit:     "Engineering",
			Org:         "Acme",
			City:        "Springfield",
			State:       "Illinois",
			CountryCode: "US",
		},
		//keytool sometimes emits ST instead of S
		"CN=John Doe, OU=Engineering, O=Acme, L=Springfield, ST=Illinois, C=US": {
			FirstName:   "John",
			LastName:    "Doe",
			OrgUnit:     "Engineering",
			Org:         "Acme",
			City:        "Springfield",
			State:       "Illinois",
			CountryCode: "US",
		},
		//single-token common names fill both name fields
		"CN=Cher, O=Acme": {
			FirstName: "Cher",
			LastName:  "Cher",
			Org:       "Acme",
		},
		//middle tokens are dropped
		"CN=John Ronald Reuel Tolkien": {
			FirstName: "John",
			LastName:  "Tolkien",
		},
		//unknown keys are ignored, missing keys stay empty
		"CN=John Doe, EMAIL=j@example.org, C=US": {
			FirstName:   "John",
			LastName:    "Doe",
			CountryCode: "US",
		},
		//whitespace around segments is not significant
		"  CN=John Doe ,OU= Engineering ,C=US  ": {
			FirstName:   "John",
			LastName:    "Doe",
			OrgUnit:     "Engineering",
			CountryCode: "US",
		},
		//escaped delimiters are not split points
		`CN=John Doe, O=Acme\, Inc., L=Springfield`: {
			FirstName: "John",
			LastName:  "Doe",
			Org:       "Acme, Inc.",
			City:      "Springfield",
		},
		//segments without '=' are skipped
		"garbage, CN=John Doe": {
			FirstName: "John",
			LastName:  "Doe",
		},
	}

	for in, expect := range tests {
		got, err := Decode(in)
		if err != nil {
			t.Errorf("Decode(%q): unexpected error '%v'", in, err)
			continue
		}
		if !reflect.DeepEqual(got, expect) {
			t.Errorf("Decode(%q): expected %+v, got %+v", in, expect, got)
		}
	}
}

func TestDecodeNoIdentity(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"no equals sign here",
		",,,",
		`\,`,
	}

	for _, in := range tests {
		_, err := Decode(in)
		if !errors.Is(err, ErrNoIdentity) {
			t.Errorf("Decode(%q): expected ErrNoIdentity, got '%v'", in, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tests := map[string]Identity{
		"plain": {
			FirstName:   "John",
			LastName:    "Doe",
			OrgUnit:     "Engineering",
			Org:         "Acme",
			City:        "Springfield",
			State:       "Illinois",
			CountryCode: "US",
		},
		"all empty": {},
		"commas and backslashes": {
			FirstName:   "John",
			LastName:    "Doe",
			OrgUnit:     "R,D",
			Org:         `Acme\, Inc.`,
			City:        `a\\b`,
			State:       `,leading`,
			CountryCode: "US",
		},
		"trailing backslash": {
			FirstName:   "John",
			LastName:    "Doe",
			Org:         `Acme\`,
			CountryCode: "DE",
		},
		"single token name": {
			FirstName: "Cher",
			LastName:  "Cher",
			Org:       "Acme",
		},
	}

	for name, id := range tests {
		got, err := Decode(Encode(id))
		if err != nil {
			t.Errorf("%s: unexpected error '%v'", name, err)
			continue
		}
		if !reflect.DeepEqual(got, id) {
			t.Errorf("%s: round trip changed identity: expected %+v, got %+v", name, id, got)
		}
	}
}

func TestCommonName(t *testing.T) {
	tests := map[string]Identity{
		"John Doe": {FirstName: "John", LastName: "Doe"},
		"Cher":     {FirstName: "Cher", LastName: "Cher"},
		"":         {},
	}

	for expect, id := range tests {
		if got := id.CommonName(); got != expect {
			t.Errorf("expected '%s', got '%s'", expect, got)
		}
	}
}
