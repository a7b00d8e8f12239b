// Package cmd is the xmremote command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmremote/common"
	"github.com/mensylisir/xmremote/config"
	"github.com/mensylisir/xmremote/logger"
)

var (
	settingsPath string
	logDir       string
	logLevel     string
	verbose      bool

	repo     *config.FileRepository
	settings *config.Settings
)

// exitError carries a process exit status out of a command without
// printing anything further.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var rootCmd = &cobra.Command{
	Use:   common.AppName,
	Short: "Run a sudo command on many hosts over interactive SSH sessions",
	Long: `xmremote launches "sudo -S <command>" in an interactive shell on every
selected host, answers the first password prompt on each host with a sudo
password read once from the terminal, and streams all output back here.

Keystrokes typed while sessions run are relayed to them. Press Ctrl-] to
close every session.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "", "settings file (default ~/.xmremote/settings.yaml; .toml also accepted)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "write logs to a daily rotated file in this directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging with level names")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(hostsCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	path := settingsPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return errors.Wrap(err, "cannot locate settings file")
		}
	}
	var err error
	if repo, err = config.NewFileRepository(path); err != nil {
		return err
	}
	if settings, err = repo.Load(); err != nil {
		return err
	}
	if err := config.ApplyEnv(settings); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid --log-level %q", logLevel)
	}
	if verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	dir := logDir
	if dir == "" {
		dir = settings.LogDir
	}
	return logger.InitGlobalLogger(dir, verbose, level)
}

func hostsPath() string {
	return config.Resolve(repo.Dir(), settings.HostsFile)
}

func commandsPath() string {
	return config.Resolve(repo.Dir(), settings.CommandsFile)
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
