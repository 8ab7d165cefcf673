package host

import (
	"github.com/steelcutops/kerneltidy/kerneltidy/commandmanager"
	"github.com/steelcutops/kerneltidy/kerneltidy/hostmanager"
	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
	"github.com/steelcutops/kerneltidy/logger"
)

// Host bundles the managers used to tidy kernels on one machine.
type Host struct {
	Hostname string
	commandmanager.Credentials
	SSHClient commandmanager.SSHDialer
	Sudo      bool
	Log       logger.Logger

	CommandManager commandmanager.CommandManager
	HostManager    hostmanager.HostManager
	Cache          packagemanager.Cache
}
