package commandmanager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/steelcutops/kerneltidy/logger"
	"golang.org/x/crypto/ssh"
)

type SSHDialer interface {
	Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error)
}

// RealSSHClient dials with golang.org/x/crypto/ssh.
type RealSSHClient struct{}

func (RealSSHClient) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	config.Timeout = timeout
	return ssh.Dial(network, addr, config)
}

type UnixCommandManager struct {
	Hostname   string
	SSHClient  SSHDialer
	KeyManager SSHKeyManager
	Log        logger.Logger
	Credentials
}

var (
	ErrSudoPassword = errors.New("sudo: incorrect password provided")
	ErrNotSudoer    = errors.New("sudo: user is not in the sudoers file")
	// ErrCommandNotFound is returned when the host ran the request but has no
	// such executable. Transport and context errors never wrap it.
	ErrCommandNotFound = errors.New("command not found")
)

// exitCommandNotFound is the shell status for a missing executable.
const exitCommandNotFound = 127

func (u *UnixCommandManager) RunLocal(ctx context.Context, config CommandConfig) (CommandResult, error) {
	start := time.Now()

	argv := u.argv(config)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if len(config.Env) > 0 && !config.Sudo {
		cmd.Env = append(os.Environ(), config.Env...)
	}
	if config.Sudo {
		cmd.Stdin = strings.NewReader(u.SudoPassword + "\n")
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := CommandResult{
		Command:   strings.Join(argv, " "),
		STDOUT:    stdout.String(),
		STDERR:    stderr.String(),
		ExitCode:  getExitCode(err),
		Duration:  time.Since(start),
		Timestamp: start,
	}

	if sudoErr := checkSudo(result); sudoErr != nil {
		return result, sudoErr
	}
	if err != nil {
		return result, commandError(result, err)
	}
	return result, nil
}

func (u *UnixCommandManager) RunRemote(ctx context.Context, config CommandConfig) (CommandResult, error) {
	u.log().Debug("Executing remote command", "hostname", u.Hostname, "command", config.Command)

	if u.SSHClient == nil {
		return CommandResult{}, errors.New("SSHClient is not initialized")
	}

	sshConfig, err := u.getSSHConfig()
	if err != nil {
		return CommandResult{}, err
	}

	dialTimeout := 15 * time.Minute
	if deadline, ok := ctx.Deadline(); ok {
		dialTimeout = time.Until(deadline)
	}

	client, err := u.SSHClient.Dial("tcp", sshAddr(u.Hostname), sshConfig, dialTimeout)
	if err != nil {
		return CommandResult{}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return CommandResult{}, err
	}
	defer session.Close()

	cmdStr := shellJoin(u.argv(config))
	if config.Sudo {
		session.Stdin = strings.NewReader(u.SudoPassword + "\n")
	}

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmdStr)
	}()

	select {
	case runErr := <-done:
		result := CommandResult{
			Command:   cmdStr,
			STDOUT:    stdout.String(),
			STDERR:    stderr.String(),
			ExitCode:  getExitCode(runErr),
			Duration:  time.Since(start),
			Timestamp: start,
		}
		if sudoErr := checkSudo(result); sudoErr != nil {
			return result, sudoErr
		}
		if runErr != nil {
			u.log().Error("Failed to execute command over SSH", "command", cmdStr, "error", runErr)
			return result, commandError(result, runErr)
		}
		return result, nil

	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		u.log().Error("Command over SSH timed out", "command", cmdStr)
		return CommandResult{}, ctx.Err()
	}
}

func (u *UnixCommandManager) Run(ctx context.Context, config CommandConfig) (CommandResult, error) {
	if u.isLocal() {
		u.log().Debug("Running local command", "hostname", u.Hostname, "command", config.Command, "args", config.Args)
		return u.RunLocal(ctx, config)
	}

	u.log().Debug("Running remote command", "hostname", u.Hostname, "command", config.Command, "args", config.Args)
	return u.RunRemote(ctx, config)
}

func (u *UnixCommandManager) getSSHConfig() (*ssh.ClientConfig, error) {
	var authMethod ssh.AuthMethod

	if u.Password != "" {
		u.log().Debug("Using password authentication", "hostname", u.Hostname)
		authMethod = ssh.Password(u.Password)
	} else {
		u.log().Debug("Using public key authentication", "hostname", u.Hostname)
		keyManager := u.KeyManager
		if keyManager == nil {
			if u.KeyPassphrase != "" {
				keyManager = FileSSHKeyManager{}
			} else {
				keyManager = AgentSSHKeyManager{}
			}
		}

		keys, err := keyManager.ReadPrivateKeys(u.KeyPassphrase)
		if err != nil {
			return nil, err
		}

		authMethod = ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			return keys, nil
		})
	}

	hostKeyCallback, err := knownHostsCallback()
	if err != nil {
		u.log().Warn("Host key verification disabled", "hostname", u.Hostname, "error", err)
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	return &ssh.ClientConfig{
		User:            u.User,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: hostKeyCallback,
	}, nil
}

// argv builds the final argument vector, prefixing sudo and env when needed.
func (u *UnixCommandManager) argv(config CommandConfig) []string {
	var argv []string
	if config.Sudo {
		argv = append(argv, "sudo", "-S", "-p", "")
	}
	if len(config.Env) > 0 && (config.Sudo || !u.isLocal()) {
		argv = append(argv, "env")
		argv = append(argv, config.Env...)
	}
	argv = append(argv, config.Command)
	return append(argv, config.Args...)
}

func (u *UnixCommandManager) isLocal() bool {
	return u.Hostname == "" || u.Hostname == "localhost" || u.Hostname == "127.0.0.1"
}

func (u *UnixCommandManager) log() logger.Logger {
	if u.Log == nil {
		u.Log = logger.Discard()
	}
	return u.Log
}

func sshAddr(hostname string) string {
	if _, _, err := net.SplitHostPort(hostname); err == nil {
		return hostname
	}
	return net.JoinHostPort(hostname, "22")
}

func checkSudo(result CommandResult) error {
	output := result.STDOUT + result.STDERR
	if strings.Contains(output, "incorrect password") {
		return ErrSudoPassword
	}
	if strings.Contains(output, "is not in the sudoers file") {
		return ErrNotSudoer
	}
	return nil
}

func commandError(result CommandResult, err error) error {
	if errors.Is(err, exec.ErrNotFound) || result.ExitCode == exitCommandNotFound {
		err = fmt.Errorf("%w: %w", ErrCommandNotFound, err)
	}
	stderr := strings.TrimSpace(result.STDERR)
	if stderr == "" {
		return fmt.Errorf("%s: %w", result.Command, err)
	}
	return fmt.Errorf("%s: %w: %s", result.Command, err, stderr)
}

func getExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	var sshErr *ssh.ExitError
	if errors.As(err, &sshErr) {
		return sshErr.ExitStatus()
	}
	if err != nil {
		return -1
	}
	return 0
}

// shellJoin quotes each argument for a POSIX shell.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=+,@%", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
