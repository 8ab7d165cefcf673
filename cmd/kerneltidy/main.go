package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/steelcutops/kerneltidy/kerneltidy/config"
	"github.com/steelcutops/kerneltidy/kerneltidy/host"
	"github.com/steelcutops/kerneltidy/kerneltidy/packagemanager"
	"github.com/steelcutops/kerneltidy/kerneltidy/planner"
	"github.com/steelcutops/kerneltidy/logger"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	envPrefix       = "kerneltidy"
	unavailableHint = "Please install apt and dpkg and try again"
)

var version = "dev"

type flags struct {
	ConfigPath         string
	Debug              bool
	Exclude            string
	Hostname           string
	KeyPassPrompt      bool
	LogFileName        string
	PasswordPrompt     bool
	StrictHeaders      bool
	Sudo               bool
	SudoPasswordPrompt bool
	Uninstall          bool
	Username           string
	Verbose            bool
}

// options is the merged result of flags, environment and config file.
type options struct {
	flags
	Rules planner.Rules
}

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// loggedError is an error already written to the configured log.
type loggedError struct {
	err error
}

func (e loggedError) Error() string { return e.err.Error() }
func (e loggedError) Unwrap() error { return e.err }

// logFailure writes err to log so it lands in the --log file as well.
func logFailure(log logger.Logger, err error) error {
	if err == nil {
		return nil
	}
	log.Error("kerneltidy failed", "error", err)
	return loggedError{err}
}

type runFunc func(cmd *cobra.Command, o options) error

func newRootCmd(run runFunc) *cobra.Command {
	f := &flags{}
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "kerneltidy",
		Short: "Remove old kernel image and header packages",
		Long: "kerneltidy finds installed kernel image and header packages that are neither the\n" +
			"latest nor the running kernel and removes them. Without --uninstall it only\n" +
			"computes the plan.",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unexpected argument %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := resolveOptions(cmd, v, f)
			if err != nil {
				return err
			}
			return run(cmd, o)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	fl := rootCmd.Flags()
	fl.BoolVarP(&f.Uninstall, "uninstall", "u", false, "Remove the packages instead of only planning")
	fl.BoolVarP(&f.Verbose, "verbose", "v", false, "Print the plan and the resolved changes")
	fl.StringVar(&f.ConfigPath, "config", config.DefaultPath, "Path to INI configuration file")
	fl.BoolVar(&f.Debug, "debug", false, "Enable debug log level")
	fl.StringVar(&f.LogFileName, "log", "", "Log file name (default stderr)")
	fl.BoolVar(&f.StrictHeaders, "strict-headers", false, "Keep only headers whose name exactly matches the latest or running kernel")
	fl.StringVar(&f.Exclude, "exclude", config.DefaultExclude, "Never touch packages whose name contains this string")
	fl.StringVar(&f.Hostname, "hostname", "localhost", "Host to tidy, remote hosts are reached over SSH")
	fl.StringVar(&f.Username, "username", "", "Username to use for SSH connection")
	fl.BoolVar(&f.PasswordPrompt, "password", false, "Prompt for the SSH password")
	fl.BoolVar(&f.KeyPassPrompt, "keypass", false, "Prompt for the passphrase of SSH keys")
	fl.BoolVar(&f.Sudo, "sudo", false, "Run package changes through sudo")
	fl.BoolVar(&f.SudoPasswordPrompt, "sudo-password", false, "Prompt for the sudo password")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fl)

	return rootCmd
}

// resolveOptions applies flag > environment > config file > default.
func resolveOptions(cmd *cobra.Command, v *viper.Viper, f *flags) (options, error) {
	o := options{flags: *f}

	o.ConfigPath = v.GetString("config")
	cfg, err := config.Load(o.ConfigPath, v.IsSet("config"))
	if err != nil {
		return o, err
	}

	o.Uninstall = v.GetBool("uninstall")
	o.Verbose = v.GetBool("verbose")
	o.Debug = v.GetBool("debug")
	o.LogFileName = v.GetString("log")
	o.PasswordPrompt = v.GetBool("password")
	o.KeyPassPrompt = v.GetBool("keypass")
	o.SudoPasswordPrompt = v.GetBool("sudo-password")

	if v.IsSet("exclude") {
		cfg.Planner.Exclude = v.GetString("exclude")
	}
	if v.IsSet("strict-headers") {
		cfg.Planner.StrictHeaderMatch = v.GetBool("strict-headers")
	}
	if v.IsSet("hostname") {
		cfg.Host.Hostname = v.GetString("hostname")
	}
	if v.IsSet("username") {
		cfg.Host.User = v.GetString("username")
	}
	if v.IsSet("sudo") {
		cfg.Host.Sudo = v.GetBool("sudo")
	}
	if err := cfg.Validate(); err != nil {
		return o, err
	}

	o.Exclude = cfg.Planner.Exclude
	o.StrictHeaders = cfg.Planner.StrictHeaderMatch
	o.Hostname = cfg.Host.Hostname
	o.Username = cfg.Host.User
	o.Sudo = cfg.Host.Sudo
	o.Rules = planner.RulesFromConfig(cfg.Planner)
	return o, nil
}

func tidy(cmd *cobra.Command, o options) (err error) {
	l := logrus.New()
	closer, err := logger.Configure(l, o.Debug, o.LogFileName)
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logger.New(l)
	defer func() {
		err = logFailure(log, err)
	}()

	hostOptions, err := buildHostOptions(o, log)
	if err != nil {
		return err
	}

	h, err := host.NewHost(o.Hostname, hostOptions...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = planner.Tidy(ctx, h.Cache, h.HostManager, o.Rules, planner.ApplyOptions{
		Commit:  o.Uninstall,
		Verbose: o.Verbose,
		Out:     cmd.OutOrStdout(),
		Log:     h.Log,
	})
	return err
}

func buildHostOptions(o options, log logger.Logger) ([]host.HostOption, error) {
	opts := []host.HostOption{
		host.WithLogger(log),
		host.WithSudo(o.Sudo),
	}
	if o.Username != "" {
		opts = append(opts, host.WithUser(o.Username))
	}

	prompts := []struct {
		enabled bool
		prompt  string
		apply   func(string) host.HostOption
	}{
		{o.PasswordPrompt, "Enter the password: ", host.WithPassword},
		{o.KeyPassPrompt, "Enter the key passphrase: ", host.WithKeyPassphrase},
		{o.SudoPasswordPrompt, "Enter the sudo password: ", host.WithSudoPassword},
	}
	for _, p := range prompts {
		if !p.enabled {
			continue
		}
		secret, err := readSecret(p.prompt)
		if err != nil {
			return nil, err
		}
		if secret != "" {
			opts = append(opts, p.apply(secret))
		}
	}
	return opts, nil
}

func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return string(secret), nil
}

// exitCode reports err on stderr and maps it to the process exit status.
func exitCode(cmd *cobra.Command, stderr io.Writer, err error) int {
	var usageErr usageError
	var logged loggedError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usageErr):
		fmt.Fprintln(stderr, "Error:", err)
		fmt.Fprint(stderr, cmd.UsageString())
		return exitUsage
	case errors.Is(err, packagemanager.ErrUnavailable):
		fmt.Fprintln(stderr, unavailableHint)
		return exitFailure
	case errors.As(err, &logged):
		return exitFailure
	default:
		logrus.Errorf("Error: %v", err)
		return exitFailure
	}
}

func main() {
	rootCmd := newRootCmd(tidy)
	err := rootCmd.ExecuteContext(context.Background())
	os.Exit(exitCode(rootCmd, os.Stderr, err))
}
