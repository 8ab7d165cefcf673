package planner

import (
	"sort"

	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
)

// Plan is the outcome of one planning run. Every list is sorted.
type Plan struct {
	Latest        string
	Running       string
	Installed     []string
	RemoveKernels []string
	KeepHeaders   []string
	RemoveHeaders []string
}

// Build computes the removal plan for a package snapshot and the running
// kernel release. It does not touch the cache.
func Build(pkgs []packagemanager.Package, running string, rules Rules, cmp Comparator) Plan {
	installed, latest := ScanKernels(pkgs, rules, cmp)
	keep, remove := ClassifyHeaders(pkgs, latest, running, rules)

	return Plan{
		Latest:        latest,
		Running:       running,
		Installed:     installed,
		RemoveKernels: RemovalSet(installed, latest, running, cmp),
		KeepHeaders:   keep,
		RemoveHeaders: remove,
	}
}

// Removals lists every package the plan deletes.
func (p Plan) Removals() []string {
	removals := make([]string, 0, len(p.RemoveKernels)+len(p.RemoveHeaders))
	removals = append(removals, p.RemoveKernels...)
	removals = append(removals, p.RemoveHeaders...)
	sort.Strings(removals)
	return removals
}
