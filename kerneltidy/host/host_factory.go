package host

import (
	"errors"

	"github.com/steelcutops/kerneltidy/kerneltidy/commandmanager"
	"github.com/steelcutops/kerneltidy/kerneltidy/hostmanager"
	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
	"github.com/steelcutops/kerneltidy/logger"
)

func NewHost(hostname string, options ...HostOption) (*Host, error) {
	if hostname == "" {
		return nil, errors.New("hostname must not be empty")
	}

	h := &Host{Hostname: hostname}
	for _, option := range options {
		option(h)
	}

	if h.Log == nil {
		h.Log = logger.Discard()
	}
	h.Log = h.Log.With("host", hostname)

	if h.SSHClient == nil {
		h.SSHClient = commandmanager.RealSSHClient{}
	}

	if h.CommandManager == nil {
		h.CommandManager = &commandmanager.UnixCommandManager{
			Hostname:    hostname,
			SSHClient:   h.SSHClient,
			Log:         h.Log,
			Credentials: h.Credentials,
		}
	}

	h.HostManager = &hostmanager.UnixHostManager{CommandManager: h.CommandManager}
	h.Cache = packagemanager.NewAptCache(h.CommandManager, h.Sudo, h.Log)

	return h, nil
}
