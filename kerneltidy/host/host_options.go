package host

import (
	"github.com/steelcutops/kerneltidy/kerneltidy/commandmanager"
	"github.com/steelcutops/kerneltidy/logger"
)

type HostOption func(*Host)

// WithUser returns a HostOption that sets the SSH user for a Host.
func WithUser(user string) HostOption {
	return func(host *Host) {
		host.User = user
	}
}

// WithPassword returns a HostOption that sets the SSH password for a Host.
func WithPassword(password string) HostOption {
	return func(host *Host) {
		host.Password = password
	}
}

// WithKeyPassphrase returns a HostOption that sets the key passphrase for a Host.
func WithKeyPassphrase(keyPassphrase string) HostOption {
	return func(host *Host) {
		host.KeyPassphrase = keyPassphrase
	}
}

// WithSudo runs package changes through sudo.
func WithSudo(sudo bool) HostOption {
	return func(host *Host) {
		host.Sudo = sudo
	}
}

// WithSudoPassword returns a HostOption that sets the sudo password for a Host.
// It implies WithSudo(true).
func WithSudoPassword(password string) HostOption {
	return func(host *Host) {
		host.SudoPassword = password
		host.Sudo = true
	}
}

func WithLogger(log logger.Logger) HostOption {
	return func(host *Host) {
		host.Log = log
	}
}

// WithCommandManager replaces the command manager every other manager uses.
func WithCommandManager(cmdManager commandmanager.CommandManager) HostOption {
	return func(host *Host) {
		host.CommandManager = cmdManager
	}
}
