package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
	"github.com/steelcutops/kerneltidy/kerneltidy/planner"
	"github.com/steelcutops/kerneltidy/logger"
)

// execute runs the root command with args and returns the options the run
// function saw together with the exit code.
func execute(t *testing.T, args ...string) (options, int, string) {
	t.Helper()

	var got options
	cmd := newRootCmd(func(_ *cobra.Command, o options) error {
		got = o
		return nil
	})
	var stderr bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	return got, exitCode(cmd, &stderr, err), stderr.String()
}

func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kerneltidy.ini")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	o, code, _ := execute(t, "--config", emptyConfig(t))

	assert.Equal(t, exitOK, code)
	assert.False(t, o.Uninstall)
	assert.False(t, o.Verbose)
	assert.Equal(t, "localhost", o.Hostname)
	assert.Equal(t, planner.DefaultRules(), o.Rules)
}

func TestShortAndLongFlags(t *testing.T) {
	cfg := emptyConfig(t)

	o, code, _ := execute(t, "-u", "-v", "--config", cfg)
	assert.Equal(t, exitOK, code)
	assert.True(t, o.Uninstall)
	assert.True(t, o.Verbose)

	o, code, _ = execute(t, "--uninstall", "--verbose", "--strict-headers", "--exclude", "oem", "--config", cfg)
	assert.Equal(t, exitOK, code)
	assert.True(t, o.Uninstall)
	assert.True(t, o.Verbose)
	assert.Equal(t, planner.MatchExact, o.Rules.HeaderMatch)
	assert.Equal(t, "oem", o.Rules.Exclude)
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	_, code, stderr := execute(t, "--purge", "--config", emptyConfig(t))

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown flag: --purge")
	assert.Contains(t, stderr, "Usage:")
}

func TestPositionalArgumentIsUsageError(t *testing.T) {
	_, code, stderr := execute(t, "linux-image-6.1.0-9-amd64", "--config", emptyConfig(t))

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unexpected argument")
}

func TestConfigFileAndPrecedence(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "kerneltidy.ini")
	require.NoError(t, os.WriteFile(cfg, []byte(`
[planner]
exclude = azure
header_min_size = 4096
strict_header_match = true

[host]
hostname = db1.example.com
user = ops
sudo = true
`), 0o644))

	o, code, _ := execute(t, "--config", cfg)
	require.Equal(t, exitOK, code)
	assert.Equal(t, planner.Rules{Exclude: "azure", HeaderMinSize: 4096, HeaderMatch: planner.MatchExact}, o.Rules)
	assert.Equal(t, "db1.example.com", o.Hostname)
	assert.Equal(t, "ops", o.Username)
	assert.True(t, o.Sudo)

	t.Setenv("KERNELTIDY_EXCLUDE", "gcp")
	t.Setenv("KERNELTIDY_HOSTNAME", "db2.example.com")
	o, _, _ = execute(t, "--config", cfg)
	assert.Equal(t, "gcp", o.Rules.Exclude)
	assert.Equal(t, "db2.example.com", o.Hostname)

	o, _, _ = execute(t, "--config", cfg, "--hostname", "db3.example.com")
	assert.Equal(t, "db3.example.com", o.Hostname)
}

func TestEnvironmentFlags(t *testing.T) {
	t.Setenv("KERNELTIDY_VERBOSE", "true")
	t.Setenv("KERNELTIDY_UNINSTALL", "1")
	t.Setenv("KERNELTIDY_CONFIG", emptyConfig(t))

	o, code, _ := execute(t)
	assert.Equal(t, exitOK, code)
	assert.True(t, o.Verbose)
	assert.True(t, o.Uninstall)
}

func TestMissingExplicitConfig(t *testing.T) {
	_, code, _ := execute(t, "--config", filepath.Join(t.TempDir(), "absent.ini"))
	assert.Equal(t, exitFailure, code)
}

func TestExitCodes(t *testing.T) {
	cmd := newRootCmd(nil)
	var stderr bytes.Buffer

	assert.Equal(t, exitOK, exitCode(cmd, &stderr, nil))

	assert.Equal(t, exitFailure, exitCode(cmd, &stderr, fmt.Errorf("%w: apt-get: not found", packagemanager.ErrUnavailable)))
	assert.Contains(t, stderr.String(), unavailableHint)

	assert.Equal(t, exitFailure, exitCode(cmd, &stderr, errors.New("E: Sub-process /usr/bin/dpkg returned an error code (1)")))
	assert.Equal(t, exitUsage, exitCode(cmd, &stderr, usageError{errors.New("bad flag")}))
}

func TestLoggedErrorsExitWithFailure(t *testing.T) {
	cmd := newRootCmd(nil)
	var stderr bytes.Buffer

	assert.Equal(t, exitFailure, exitCode(cmd, &stderr, loggedError{errors.New("dpkg was interrupted")}))
	assert.Empty(t, stderr.String())

	unavailable := loggedError{fmt.Errorf("%w: apt-get", packagemanager.ErrUnavailable)}
	assert.Equal(t, exitFailure, exitCode(cmd, &stderr, unavailable))
	assert.Contains(t, stderr.String(), unavailableHint)
}

func TestLogFailureWritesConfiguredLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kerneltidy.log")
	l := logrus.New()
	closer, err := logger.Configure(l, false, path)
	require.NoError(t, err)

	assert.NoError(t, logFailure(logger.New(l), nil))

	err = logFailure(logger.New(l), errors.New("E: Sub-process /usr/bin/dpkg returned an error code (1)"))
	require.NoError(t, closer.Close())

	var logged loggedError
	assert.ErrorAs(t, err, &logged)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kerneltidy failed")
	assert.Contains(t, string(data), "returned an error code (1)")
}
