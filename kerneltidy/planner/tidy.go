package planner

import (
	"context"
	"fmt"

	"github.com/steelcutops/kerneltidy/kerneltidy/hostmanager"
	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
)

// HostFacts reports the facts of the host being tidied, the running kernel
// release among them.
type HostFacts interface {
	Info(ctx context.Context) (hostmanager.HostInfo, error)
}

// Tidy runs a full pass: snapshot, plan, optional report, apply.
func Tidy(ctx context.Context, cache packagemanager.Cache, host HostFacts, rules Rules, opts ApplyOptions) (Plan, error) {
	if err := cache.Available(ctx); err != nil {
		return Plan{}, err
	}

	info, err := host.Info(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read running kernel: %w", err)
	}
	running := info.KernelVersion
	opts.log().Debug("Read host facts",
		"hostname", info.Hostname,
		"os", info.OSVersion,
		"kernel", running,
	)

	pkgs, err := cache.Packages(ctx)
	if err != nil {
		return Plan{}, err
	}

	plan := Build(pkgs, running, rules, packagemanager.CompareVersions)
	opts.log().Debug("Computed removal plan",
		"latest", plan.Latest,
		"running", plan.Running,
		"installed", len(plan.Installed),
		"remove_kernels", len(plan.RemoveKernels),
		"keep_headers", len(plan.KeepHeaders),
		"remove_headers", len(plan.RemoveHeaders),
		"header_match", rules.HeaderMatch.String(),
	)

	if opts.Verbose {
		if err := Report(opts.out(), plan); err != nil {
			return plan, err
		}
	}

	return plan, Apply(ctx, cache, plan, opts)
}
