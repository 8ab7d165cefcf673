package packagemanager

import (
	"strings"

	debVer "github.com/knqyf263/go-deb-version"
)

// CompareVersions orders two version strings with Debian rules
// ("[epoch:]upstream-version[-debian-revision]"). Strings that are not valid
// Debian versions fall back to plain string ordering.
func CompareVersions(a, b string) int {
	va, errA := debVer.NewVersion(a)
	vb, errB := debVer.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}
