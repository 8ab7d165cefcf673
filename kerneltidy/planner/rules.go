// Package planner decides which kernel image and header packages can be
// removed and applies that decision through a packagemanager.Cache.
package planner

import "github.com/steelcutops/kerneltidy/kerneltidy/config"

// MatchMode selects how header packages are paired with the latest and
// running kernels.
type MatchMode int

const (
	// MatchSubstring keeps a header whose name is contained in the derived
	// header name. This keeps flavor-less header trees such as
	// linux-headers-5.15.0-91 alongside linux-headers-5.15.0-91-generic.
	MatchSubstring MatchMode = iota
	// MatchExact keeps a header only when its name equals the derived name.
	MatchExact
)

func (m MatchMode) String() string {
	switch m {
	case MatchSubstring:
		return "substring"
	case MatchExact:
		return "exact"
	}
	return "unknown"
}

// Comparator orders two version strings, returning <0, 0 or >0.
type Comparator func(a, b string) int

// Rules are the tunables of a planning run.
type Rules struct {
	// Exclude marks a vendor package family that is never touched. Empty
	// disables the exclusion.
	Exclude string
	// HeaderMinSize is the installed size in bytes below which header
	// packages are treated as meta packages and ignored.
	HeaderMinSize int64
	HeaderMatch   MatchMode
}

func DefaultRules() Rules {
	return Rules{
		Exclude:       config.DefaultExclude,
		HeaderMinSize: config.DefaultHeaderMinSize,
		HeaderMatch:   MatchSubstring,
	}
}

// RulesFromConfig converts the [planner] section of the config file.
func RulesFromConfig(c config.Planner) Rules {
	rules := Rules{
		Exclude:       c.Exclude,
		HeaderMinSize: c.HeaderMinSize,
		HeaderMatch:   MatchSubstring,
	}
	if c.StrictHeaderMatch {
		rules.HeaderMatch = MatchExact
	}
	return rules
}
