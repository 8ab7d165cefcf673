package commandmanager

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

type MockSSHClient struct {
	dialError error
	addr      string
}

func (m *MockSSHClient) Dial(network, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	m.addr = addr
	return nil, m.dialError
}

func TestRunLocal(t *testing.T) {
	manager := UnixCommandManager{Hostname: "localhost"}

	result, err := manager.RunLocal(context.Background(), CommandConfig{
		Command: "echo",
		Args:    []string{"hello"},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.STDOUT)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "echo hello", result.Command)
}

func TestRunLocalEnv(t *testing.T) {
	manager := UnixCommandManager{Hostname: "localhost"}

	result, err := manager.RunLocal(context.Background(), CommandConfig{
		Command: "sh",
		Args:    []string{"-c", "echo $KERNELTIDY_TEST"},
		Env:     []string{"KERNELTIDY_TEST=set"},
	})

	require.NoError(t, err)
	assert.Equal(t, "set\n", result.STDOUT)
}

func TestRunLocalFailure(t *testing.T) {
	manager := UnixCommandManager{Hostname: "localhost"}

	result, err := manager.RunLocal(context.Background(), CommandConfig{
		Command: "sh",
		Args:    []string{"-c", "echo boom >&2; exit 3"},
	})

	require.Error(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunLocalCommandNotFound(t *testing.T) {
	manager := UnixCommandManager{Hostname: "localhost"}

	_, err := manager.RunLocal(context.Background(), CommandConfig{Command: "kerneltidy-no-such-command"})
	assert.ErrorIs(t, err, ErrCommandNotFound)

	result, err := manager.RunLocal(context.Background(), CommandConfig{
		Command: "sh",
		Args:    []string{"-c", "exit 127"},
	})
	assert.Equal(t, 127, result.ExitCode)
	assert.ErrorIs(t, err, ErrCommandNotFound)

	_, err = manager.RunLocal(context.Background(), CommandConfig{
		Command: "sh",
		Args:    []string{"-c", "exit 1"},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCommandNotFound)
}

func TestIsLocal(t *testing.T) {
	manager := UnixCommandManager{Hostname: "localhost"}
	assert.True(t, manager.isLocal())

	manager.Hostname = ""
	assert.True(t, manager.isLocal())

	manager.Hostname = "example.com"
	assert.False(t, manager.isLocal())
}

func TestRunRemoteDialError(t *testing.T) {
	client := &MockSSHClient{dialError: errors.New("mock dial error")}
	manager := UnixCommandManager{
		Hostname:  "remote",
		SSHClient: client,
		Credentials: Credentials{
			User:     "user",
			Password: "password",
		},
	}

	_, err := manager.Run(context.Background(), CommandConfig{Command: "uname", Args: []string{"-r"}})

	require.Error(t, err)
	assert.Equal(t, "mock dial error", err.Error())
	assert.NotErrorIs(t, err, ErrCommandNotFound)
	assert.Equal(t, "remote:22", client.addr)
}

func TestRunRemoteWithoutClient(t *testing.T) {
	manager := UnixCommandManager{Hostname: "remote"}

	_, err := manager.RunRemote(context.Background(), CommandConfig{Command: "ls"})
	assert.Error(t, err)
}

func TestArgv(t *testing.T) {
	local := UnixCommandManager{Hostname: "localhost"}
	remote := UnixCommandManager{Hostname: "db1"}

	cfg := CommandConfig{
		Command: "apt-get",
		Args:    []string{"-y", "install", "foo-"},
		Env:     []string{"DEBIAN_FRONTEND=noninteractive"},
	}
	assert.Equal(t, []string{"apt-get", "-y", "install", "foo-"}, local.argv(cfg))
	assert.Equal(t, []string{"env", "DEBIAN_FRONTEND=noninteractive", "apt-get", "-y", "install", "foo-"}, remote.argv(cfg))

	cfg.Sudo = true
	assert.Equal(t,
		[]string{"sudo", "-S", "-p", "", "env", "DEBIAN_FRONTEND=noninteractive", "apt-get", "-y", "install", "foo-"},
		local.argv(cfg))
}

func TestShellJoin(t *testing.T) {
	assert.Equal(t, "dpkg-query -W '-f=${Package}\t${Version}\n'",
		shellJoin([]string{"dpkg-query", "-W", "-f=${Package}\t${Version}\n"}))
	assert.Equal(t, "sudo -S -p ''", shellJoin([]string{"sudo", "-S", "-p", ""}))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestSSHAddr(t *testing.T) {
	assert.Equal(t, "db1:22", sshAddr("db1"))
	assert.Equal(t, "db1:2222", sshAddr("db1:2222"))
}

func TestCheckSudo(t *testing.T) {
	assert.ErrorIs(t, checkSudo(CommandResult{STDERR: "Sorry, try again.\nsudo: 1 incorrect password attempt"}), ErrSudoPassword)
	assert.ErrorIs(t, checkSudo(CommandResult{STDERR: "bob is not in the sudoers file."}), ErrNotSudoer)
	assert.NoError(t, checkSudo(CommandResult{STDOUT: "ok"}))
}

func TestFileSSHKeyManager(t *testing.T) {
	dir := t.TempDir()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id_ed25519"), pem.EncodeToMemory(block), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id_ed25519.pub"), []byte("ignored"), 0o644))

	signers, err := FileSSHKeyManager{Dir: dir}.ReadPrivateKeys("")
	require.NoError(t, err)
	assert.Len(t, signers, 1)

	_, err = FileSSHKeyManager{Dir: t.TempDir()}.ReadPrivateKeys("")
	assert.Error(t, err)
}
