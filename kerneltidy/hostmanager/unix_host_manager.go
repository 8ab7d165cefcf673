package hostmanager

import (
	"context"
	"errors"
	"strings"

	cm "github.com/steelcutops/kerneltidy/kerneltidy/commandmanager"
)

type UnixHostManager struct {
	CommandManager cm.CommandManager
}

// Info gathers the facts kerneltidy reports about a host.
func (uhm *UnixHostManager) Info(ctx context.Context) (HostInfo, error) {
	hostname, err := uhm.Hostname(ctx)
	if err != nil {
		return HostInfo{}, err
	}

	release, err := uhm.KernelRelease(ctx)
	if err != nil {
		return HostInfo{}, err
	}

	osVersion, err := uhm.run(ctx, "uname", "-o")
	if err != nil {
		return HostInfo{}, err
	}

	return HostInfo{
		Hostname:      hostname,
		OSVersion:     osVersion,
		KernelVersion: release,
	}, nil
}

func (uhm *UnixHostManager) Hostname(ctx context.Context) (string, error) {
	return uhm.run(ctx, "hostname")
}

// KernelRelease returns the release string of the running kernel (uname -r).
func (uhm *UnixHostManager) KernelRelease(ctx context.Context) (string, error) {
	release, err := uhm.run(ctx, "uname", "-r")
	if err != nil {
		return "", err
	}
	if release == "" {
		return "", errors.New("uname -r returned an empty kernel release")
	}
	return release, nil
}

func (uhm *UnixHostManager) run(ctx context.Context, command string, args ...string) (string, error) {
	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: command,
		Args:    args,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output.STDOUT), nil
}
