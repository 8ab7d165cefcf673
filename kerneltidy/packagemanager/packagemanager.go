package packagemanager

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when the host has no usable dpkg/apt tooling.
	ErrUnavailable = errors.New("package manager unavailable")
	// ErrUnknownPackage is returned when marking a package the cache does not know.
	ErrUnknownPackage = errors.New("unknown package")
)

// Package is a snapshot of one dpkg database entry.
type Package struct {
	Name          string
	Version       string
	Status        string
	Installed     bool
	InstalledSize int64 // bytes
}

// Changes is the change set the resolver would apply for the pending marks.
type Changes struct {
	Install []string
	Remove  []string
}

// Empty reports whether the change set does nothing.
func (c Changes) Empty() bool {
	return len(c.Install) == 0 && len(c.Remove) == 0
}

// Cache is a package database session with pending install/remove marks.
type Cache interface {
	Available(ctx context.Context) error
	Packages(ctx context.Context) ([]Package, error)
	MarkDelete(name string) error
	MarkInstall(name string) error
	Pending() int
	Changes(ctx context.Context) (Changes, error)
	Commit(ctx context.Context) error
	Clear()
}
