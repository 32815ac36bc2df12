// Package mode defines the runtime environment selector threaded through the
// composer, the pipeline and the orchestrator.
package mode

import (
	"git.home.luguber.info/inful/appserve/internal/foundation/normalization"
)

// Mode selects which pipeline variant runs.
type Mode string

const (
	Development Mode = "development"
	Test        Mode = "test"
	Production  Mode = "production"
)

// Default is used when no environment selector is present at all.
const Default = Development

var modeNormalizer = normalization.NewNormalizer(map[string]Mode{
	"development": Development,
	"test":        Test,
	"production":  Production,
}, Default)

// Parse converts raw into a Mode. An explicitly provided but unknown value is
// an error; it never falls back to Default.
func Parse(raw string) (Mode, error) {
	return modeNormalizer.NormalizeWithError(raw)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case Development, Test, Production:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }
