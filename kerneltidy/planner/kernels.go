package planner

import (
	"regexp"
	"sort"
	"strings"

	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
)

const (
	imageToken  = "linux-image"
	imagePrefix = imageToken + "-"
)

// linux-image-amd64, linux-image-generic, linux-image-686-pae, linux-image-rt-amd64 ...
var imageMetaPattern = regexp.MustCompile(`^linux-image-([a-z][a-z0-9]*|[0-9]86)(-[a-z0-9]+)*$`)

// ScanKernels returns the sorted names of installed kernel image packages and
// the one with the highest kernel version.
func ScanKernels(pkgs []packagemanager.Package, rules Rules, cmp Comparator) (installed []string, latest string) {
	for _, pkg := range pkgs {
		if !pkg.Installed || !isKernelImage(pkg.Name, rules) {
			continue
		}
		installed = append(installed, pkg.Name)
		if latest == "" || compareKernels(pkg.Name, latest, cmp) > 0 {
			latest = pkg.Name
		}
	}
	sort.Strings(installed)
	return installed, latest
}

// RemovalSet returns the installed kernels strictly older than latest that
// are not the running kernel.
func RemovalSet(installed []string, latest, running string, cmp Comparator) []string {
	var remove []string
	for _, name := range installed {
		if running != "" && strings.Contains(name, running) {
			continue
		}
		if compareKernels(name, latest, cmp) < 0 {
			remove = append(remove, name)
		}
	}
	sort.Strings(remove)
	return remove
}

func isKernelImage(name string, rules Rules) bool {
	if name == imageToken || imageMetaPattern.MatchString(name) {
		return false
	}
	if rules.Exclude != "" && strings.Contains(name, rules.Exclude) {
		return false
	}
	if !strings.Contains(name, imageToken) {
		return false
	}
	v := kernelVersion(name)
	return v != "" && v[0] >= '0' && v[0] <= '9'
}

// kernelVersion extracts the version/flavor suffix embedded in an image
// package name, e.g. "6.1.0-11-amd64" from "linux-image-6.1.0-11-amd64".
func kernelVersion(name string) string {
	i := strings.Index(name, imagePrefix)
	if i < 0 {
		return ""
	}
	return strings.TrimPrefix(name[i+len(imagePrefix):], "unsigned-")
}

func compareKernels(a, b string, cmp Comparator) int {
	if c := cmp(kernelVersion(a), kernelVersion(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
