package synth

import (
	"strings"
	"testing"

	"github.com/keyforge/keyforge/forge/dname"
)

func TestSynthesizeFillsAllFields(t *testing.T) {
	s := NewSeeded(42)

	for i := 0; i < 32; i++ {
		id := s.Synthesize()

		fields := map[string]string{
			"first name":   id.FirstName,
			"last name":    id.LastName,
			"org unit":     id.OrgUnit,
			"organization": id.Org,
			"city":         id.City,
			"state":        id.State,
			"country code": id.CountryCode,
		}
		for name, value := range fields {
			if len(strings.TrimSpace(value)) == 0 {
				t.Fatalf("iteration %d: %s is empty", i, name)
			}
		}

		if len(id.CountryCode) != 2 {
			t.Fatalf("iteration %d: country code '%s' is not two letters", i, id.CountryCode)
		}
		if strings.Contains(id.OrgUnit, ",") {
			t.Fatalf("iteration %d: org unit '%s' was not truncated at the comma", i, id.OrgUnit)
		}
	}
}

func TestSynthesizeRoundTripsThroughDn(t *testing.T) {
	s := NewSeeded(1)

	for i := 0; i < 32; i++ {
		id := s.Synthesize()
		got, err := dname.Decode(dname.Encode(id))
		if err != nil {
			t.Fatalf("iteration %d: unexpected error '%v'", i, err)
		}
		if got != id {
			t.Fatalf("iteration %d: round trip changed identity: expected %+v, got %+v", i, id, got)
		}
	}
}

func TestSeededSynthesizerIsDeterministic(t *testing.T) {
	a := NewSeeded(7).Synthesize()
	b := NewSeeded(7).Synthesize()
	if a != b {
		t.Fatalf("expected identical identities, got %+v and %+v", a, b)
	}
}
