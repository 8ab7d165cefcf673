package planner

import (
	"regexp"
	"sort"
	"strings"

	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
)

const headersPrefix = "linux-headers-"

var versionedHeaderPattern = regexp.MustCompile(`^linux-headers-\d`)

// ClassifyHeaders splits installed versioned header packages into those to
// keep and those to remove. Small meta packages and excluded vendor packages
// end up in neither list.
func ClassifyHeaders(pkgs []packagemanager.Package, latest, running string, rules Rules) (keep, remove []string) {
	var targets []string
	if latest != "" {
		targets = append(targets, strings.ReplaceAll(latest, "image", "headers"))
	}
	if running != "" {
		targets = append(targets, headersPrefix+running)
	}

	for _, pkg := range pkgs {
		if !pkg.Installed || !versionedHeaderPattern.MatchString(pkg.Name) {
			continue
		}
		if pkg.InstalledSize < rules.HeaderMinSize {
			continue
		}
		if rules.Exclude != "" && strings.Contains(pkg.Name, rules.Exclude) {
			continue
		}
		if matchesAny(pkg.Name, targets, rules.HeaderMatch) {
			keep = append(keep, pkg.Name)
			continue
		}
		remove = append(remove, pkg.Name)
	}

	sort.Strings(keep)
	sort.Strings(remove)
	return keep, remove
}

func matchesAny(name string, targets []string, mode MatchMode) bool {
	for _, target := range targets {
		switch mode {
		case MatchExact:
			if name == target {
				return true
			}
		default:
			if strings.Contains(target, name) {
				return true
			}
		}
	}
	return false
}
