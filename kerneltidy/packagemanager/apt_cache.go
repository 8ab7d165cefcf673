package packagemanager

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	cm "github.com/steelcutops/kerneltidy/kerneltidy/commandmanager"
	"github.com/steelcutops/kerneltidy/logger"
)

const dpkgQueryFormat = "${Package}\t${Version}\t${db:Status-Abbrev}\t${Installed-Size}\n"

type mark int

const (
	markInstall mark = iota + 1
	markDelete
)

// AptCache is a Cache backed by dpkg-query and apt-get. Packages must be
// called before marking so the cache knows which names exist.
type AptCache struct {
	CommandManager cm.CommandManager
	Sudo           bool
	Log            logger.Logger

	known map[string]Package
	marks map[string]mark
}

func NewAptCache(cmdManager cm.CommandManager, sudo bool, log logger.Logger) *AptCache {
	if log == nil {
		log = logger.Discard()
	}
	return &AptCache{
		CommandManager: cmdManager,
		Sudo:           sudo,
		Log:            log,
		marks:          make(map[string]mark),
	}
}

// Available checks that dpkg-query and apt-get can be executed. Only a
// missing executable yields ErrUnavailable; connection, sudo and context
// errors are returned as they are.
func (c *AptCache) Available(ctx context.Context) error {
	for _, tool := range []string{"dpkg-query", "apt-get"} {
		_, err := c.CommandManager.Run(ctx, cm.CommandConfig{
			Command: tool,
			Args:    []string{"--version"},
		})
		switch {
		case err == nil:
		case errors.Is(err, cm.ErrCommandNotFound):
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, tool, err)
		default:
			return fmt.Errorf("failed to run %s: %w", tool, err)
		}
	}
	return nil
}

// Packages snapshots the dpkg database.
func (c *AptCache) Packages(ctx context.Context) ([]Package, error) {
	output, err := c.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "dpkg-query",
		Args:    []string{"-W", "-f=" + dpkgQueryFormat},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query dpkg database: %w", err)
	}

	packages, err := parseDpkgQuery(output.STDOUT)
	if err != nil {
		return nil, err
	}

	c.known = make(map[string]Package, len(packages))
	for _, pkg := range packages {
		c.known[pkg.Name] = pkg
	}
	c.Log.Debug("Loaded package database", "packages", len(packages))
	return packages, nil
}

func (c *AptCache) MarkDelete(name string) error {
	return c.mark(name, markDelete)
}

func (c *AptCache) MarkInstall(name string) error {
	return c.mark(name, markInstall)
}

func (c *AptCache) mark(name string, m mark) error {
	if _, ok := c.known[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPackage, name)
	}
	if c.marks == nil {
		c.marks = make(map[string]mark)
	}
	c.marks[name] = m
	return nil
}

func (c *AptCache) Pending() int {
	return len(c.marks)
}

// Changes asks apt-get to simulate the pending transaction and returns what
// the resolver would actually install and remove.
func (c *AptCache) Changes(ctx context.Context) (Changes, error) {
	if len(c.marks) == 0 {
		return Changes{}, nil
	}

	args := append([]string{"-s", "-q", "install"}, c.transaction()...)
	output, err := c.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Args:    args,
	})
	if err != nil {
		return Changes{}, fmt.Errorf("failed to simulate transaction: %w", err)
	}

	return parseSimulation(output.STDOUT), nil
}

// Commit applies the pending marks. The marks are dropped on success.
func (c *AptCache) Commit(ctx context.Context) error {
	if len(c.marks) == 0 {
		return nil
	}

	args := []string{"-y", "-q", "-o", "Dpkg::Options::=--force-confdef", "-o", "Dpkg::Options::=--force-confold", "install"}
	args = append(args, c.transaction()...)

	c.Log.Info("Committing package changes", "packages", len(c.marks))
	if _, err := c.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "apt-get",
		Args:    args,
		Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
		Sudo:    c.Sudo,
	}); err != nil {
		return fmt.Errorf("failed to commit package changes: %w", err)
	}

	c.Clear()
	return nil
}

func (c *AptCache) Clear() {
	c.marks = make(map[string]mark)
}

// transaction renders the marks as apt-get install arguments, installs first
// and removals suffixed with "-", each group sorted.
func (c *AptCache) transaction() []string {
	var install, remove []string
	for name, m := range c.marks {
		switch m {
		case markInstall:
			install = append(install, name)
		case markDelete:
			remove = append(remove, name+"-")
		}
	}
	sort.Strings(install)
	sort.Strings(remove)
	return append(install, remove...)
}

func parseDpkgQuery(output string) ([]Package, error) {
	var packages []Package
	seen := make(map[string]int)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 4 {
			return nil, fmt.Errorf("unexpected dpkg-query line: %q", line)
		}

		pkg := Package{
			Name:    parts[0],
			Version: parts[1],
			Status:  parts[2],
		}
		pkg.Installed = isInstalled(pkg.Status)

		if size := strings.TrimSpace(parts[3]); size != "" {
			kib, err := strconv.ParseInt(size, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid Installed-Size for %s: %w", pkg.Name, err)
			}
			pkg.InstalledSize = kib * 1024
		}

		// multi-arch packages show up once per architecture
		if i, ok := seen[pkg.Name]; ok {
			if !packages[i].Installed && pkg.Installed {
				packages[i] = pkg
			}
			continue
		}
		seen[pkg.Name] = len(packages)
		packages = append(packages, pkg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return packages, nil
}

// isInstalled looks at the current-state letter of a dpkg status
// abbreviation such as "ii " or "rc ".
func isInstalled(abbrev string) bool {
	if len(abbrev) < 2 {
		return false
	}
	switch abbrev[1] {
	case 'n', 'c', ' ':
		return false
	}
	return true
}

func parseSimulation(output string) Changes {
	install := make(map[string]struct{})
	remove := make(map[string]struct{})

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		name := fields[1]
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		switch fields[0] {
		case "Inst":
			install[name] = struct{}{}
		case "Remv", "Purg":
			remove[name] = struct{}{}
		}
	}

	return Changes{Install: sortedKeys(install), Remove: sortedKeys(remove)}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
