// Random identity synthesis for freshly generated keystores.
//
// Certificates produced for a bare package name carry a plausible
// human/organization identity instead of placeholder values. The
// fields come from a faker source; the synthesizer only shapes them
// into a [dname.Identity].
package synth

import (
	"strings"

	"github.com/keyforge/keyforge/forge/dname"

	"github.com/brianvoe/gofakeit/v7"
)

// Synthesizer produces random identities from a faker source.
type Synthesizer struct {
	faker *gofakeit.Faker
}

// New returns a randomly seeded synthesizer.
func New() *Synthesizer {
	return &Synthesizer{faker: gofakeit.New(0)}
}

// NewSeeded returns a deterministic synthesizer for tests.
func NewSeeded(seed uint64) *Synthesizer {
	return &Synthesizer{faker: gofakeit.New(seed)}
}

// Synthesize builds a fresh random identity. The organizational unit
// is derived from a job title, truncated at the first comma so that
// titles like "Director, Engineering" stay a single unit token.
func (s *Synthesizer) Synthesize() dname.Identity {
	unit, _, _ := strings.Cut(s.faker.JobTitle(), ",")
	unit = strings.TrimSpace(unit)

	return dname.Identity{
		FirstName:   s.faker.FirstName(),
		LastName:    s.faker.LastName(),
		OrgUnit:     unit,
		Org:         s.faker.Company(),
		City:        s.faker.City(),
		State:       s.faker.State(),
		CountryCode: s.faker.CountryAbr(),
	}
}
