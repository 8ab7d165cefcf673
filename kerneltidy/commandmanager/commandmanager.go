package commandmanager

import (
	"context"
	"time"
)

// CommandConfig describes a single command invocation.
type CommandConfig struct {
	Command string
	Args    []string
	Env     []string
	Sudo    bool
}

// CommandResult encapsulates the results from a command execution.
type CommandResult struct {
	Command   string
	STDOUT    string
	STDERR    string
	ExitCode  int
	Duration  time.Duration
	Timestamp time.Time
}

// Credentials used for SSH and sudo.
type Credentials struct {
	User          string
	Password      string
	KeyPassphrase string
	SudoPassword  string
}

// CommandManager provides methods to execute commands, both locally and remotely.
type CommandManager interface {
	// RunLocal executes a command on the local system.
	RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error)

	// RunRemote executes a command on a remote system via SSH.
	RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error)

	// Run picks local or remote execution based on the target host.
	Run(ctx context.Context, config CommandConfig) (CommandResult, error)
}
