package hostmanager

import "context"

type HostInfo struct {
	Hostname      string
	OSVersion     string
	KernelVersion string
}

// HostManager encompasses operations related to host facts.
type HostManager interface {
	Info(ctx context.Context) (HostInfo, error)
	Hostname(ctx context.Context) (string, error)
	KernelRelease(ctx context.Context) (string, error)
}
