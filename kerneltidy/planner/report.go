package planner

import (
	"fmt"
	"io"
)

// Report writes a human readable description of plan to w.
func Report(w io.Writer, plan Plan) error {
	lines := []struct {
		label string
		value interface{}
	}{
		{"Latest:", plan.Latest},
		{"Running:", plan.Running},
		{"Installed:", list(plan.Installed)},
		{"Remove kernels:", list(plan.RemoveKernels)},
		{"Keep headers:", list(plan.KeepHeaders)},
		{"Remove headers:", list(plan.RemoveHeaders)},
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line.label, line.value); err != nil {
			return err
		}
	}
	return nil
}

// list keeps nil and empty slices rendering the same way.
func list(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
