package planner

import (
	"context"
	"fmt"
	"io"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
	"github.com/steelcutops/kerneltidy/logger"
)

type ApplyOptions struct {
	// Commit applies the plan; otherwise every mark is discarded.
	Commit  bool
	Verbose bool
	Out     io.Writer
	Log     logger.Logger
}

func (o ApplyOptions) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}

func (o ApplyOptions) log() logger.Logger {
	if o.Log == nil {
		return logger.Discard()
	}
	return o.Log
}

// Apply marks the plan on cache and commits it when opts.Commit is set.
// Kept headers are marked for install so the resolver does not drop them
// as a side effect of the removals.
func Apply(ctx context.Context, cache packagemanager.Cache, plan Plan, opts ApplyOptions) error {
	log := opts.log()
	removals := plan.Removals()

	if len(removals) == 0 {
		log.Debug("Nothing to uninstall")
		if opts.Verbose {
			fmt.Fprintln(opts.out(), "Nothing to uninstall")
		}
		return nil
	}

	var result *multierror.Error
	for _, name := range removals {
		if err := cache.MarkDelete(name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, name := range plan.KeepHeaders {
		if err := cache.MarkInstall(name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		cache.Clear()
		return fmt.Errorf("failed to mark packages: %w", err)
	}

	if opts.Verbose {
		changes, err := cache.Changes(ctx)
		if err != nil {
			cache.Clear()
			return err
		}
		fmt.Fprintln(opts.out(), "Will install:", list(changes.Install))
		fmt.Fprintln(opts.out(), "Will remove:", list(changes.Remove))
		if changes.Empty() {
			log.Debug("Resolver reports no changes, discarding marks", "pending", cache.Pending())
			cache.Clear()
			return nil
		}
	}

	if !opts.Commit {
		log.Debug("Dry run, discarding marks", "pending", cache.Pending())
		cache.Clear()
		return nil
	}

	log.Info("Removing packages", "packages", removals)
	if err := cache.Commit(ctx); err != nil {
		return err
	}
	log.Info("Removed packages", "count", len(removals))
	return nil
}
