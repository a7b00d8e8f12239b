package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mensylisir/xmremote/config"
	"github.com/mensylisir/xmremote/connector"
	"github.com/mensylisir/xmremote/logger"
	"github.com/mensylisir/xmremote/session"
	"github.com/mensylisir/xmremote/util"
)

const flushInterval = 250 * time.Millisecond

var (
	runHosts         []string
	runCommand       string
	runUser          string
	runKey           string
	runAttach        string
	runNoInput       bool
	runPasswordStdin bool
	runSave          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the selected command on the selected hosts",
	Long: `Run "sudo -S <command>" in an interactive shell on every selected host.

The sudo password is read once, without echo, and sent to each host the
first time its output looks like a password prompt. While sessions run,
typed keys are sent to every session, or only to --attach HOST. Ctrl-]
closes all sessions.

Exits 1 if any host failed.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVarP(&runHosts, "host", "H", nil, "run on these hosts instead of the selected ones from the hosts file")
	runCmd.Flags().StringVarP(&runCommand, "command", "C", "", "command to run (default: the selected command)")
	runCmd.Flags().StringVarP(&runUser, "user", "u", "", "remote user (default from settings)")
	runCmd.Flags().StringVarP(&runKey, "key", "k", "", "private key file (default from settings)")
	runCmd.Flags().StringVar(&runAttach, "attach", "", "send keystrokes only to this host")
	runCmd.Flags().BoolVar(&runNoInput, "no-input", false, "do not relay keystrokes")
	runCmd.Flags().BoolVar(&runPasswordStdin, "password-stdin", false, "read the sudo password from the first line of stdin")
	runCmd.Flags().BoolVar(&runSave, "save", false, "store user, key and command in the settings file")
}

// launchPlan is what a run is about to do, before the secret is known.
type launchPlan struct {
	Hosts   []string
	User    string
	KeyPath string
	Command string
}

func buildPlan() (launchPlan, error) {
	plan := launchPlan{
		User:    util.FirstNonEmpty(runUser, settings.User),
		KeyPath: util.FirstNonEmpty(runKey, settings.KeyPath),
	}

	if len(runHosts) > 0 {
		plan.Hosts = util.UniqueStrings(runHosts)
	} else {
		hosts, err := config.LoadHosts(hostsPath())
		if err != nil {
			return plan, err
		}
		plan.Hosts = config.SelectedHosts(hosts, settings)
	}

	if runCommand != "" {
		plan.Command = runCommand
	} else {
		commands, err := loadCommands()
		if err != nil {
			return plan, err
		}
		plan.Command = config.PickCommand(commands, settings.SelectedCommand)
	}
	return plan, nil
}

// preflight refuses launches that cannot work.
func preflight(p launchPlan) error {
	if len(p.Hosts) == 0 {
		return errors.New("no hosts selected: check at least one host")
	}
	if strings.TrimSpace(p.User) == "" || strings.TrimSpace(p.KeyPath) == "" {
		return errors.New("remote user and SSH key path cannot be empty")
	}
	keyPath, err := util.ExpandHome(p.KeyPath)
	if err != nil {
		return err
	}
	if !util.FileExists(keyPath) {
		return errors.Errorf("SSH key not found at: %s", keyPath)
	}
	if strings.TrimSpace(p.Command) == "" || strings.Contains(p.Command, "No commands found") {
		return errors.New("please select a valid remote command")
	}
	return config.ValidateCommand(p.Command)
}

func readSecret(cmd *cobra.Command, user string, stdin *os.File) (string, error) {
	if runPasswordStdin || !term.IsTerminal(int(stdin.Fd())) {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", errors.Wrap(err, "failed to read sudo password from stdin")
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Enter the sudo password for user %s on remote hosts (will be injected once): ", user)
	secret, err := term.ReadPassword(int(stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", errors.Wrap(err, "failed to read sudo password")
	}
	return string(secret), nil
}

func newDialer() connector.Dialer {
	sc, err := connector.LoadSSHConfig(settings.SSHConfigFile)
	if err != nil {
		logger.Log.Warnf("Ignoring ssh config: %v", err)
		return connector.NewDialer()
	}
	if sc == nil {
		return connector.NewDialer()
	}
	return connector.NewDialer(connector.WithSSHConfig(sc))
}

func registryOptions(s *config.Settings) []session.Option {
	return []session.Option{
		session.WithPollInterval(s.Engine.PollInterval.Duration),
		session.WithReadChunkSize(s.Engine.ReadChunkSize),
		session.WithCancelWait(s.Engine.CancelWait.Duration),
		session.WithOutcomeTTL(s.Engine.OutcomeTTL.Duration),
		session.WithDialTimeout(s.Engine.DialTimeout.Duration),
		session.WithKnownHosts(s.KnownHostsFile),
		session.WithLogger(logger.Log),
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	plan, err := buildPlan()
	if err != nil {
		return err
	}
	if err := preflight(plan); err != nil {
		return err
	}
	if runAttach != "" && !util.ContainsString(plan.Hosts, runAttach) {
		return errors.Errorf("--attach %s is not one of the hosts being run", runAttach)
	}

	if runSave {
		settings.User, settings.KeyPath, settings.SelectedCommand = plan.User, plan.KeyPath, plan.Command
		if err := repo.Save(settings); err != nil {
			return err
		}
	}

	secret, err := readSecret(cmd, plan.User, os.Stdin)
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.New("launch cancelled: empty sudo password")
	}

	out := newConsole(cmd.OutOrStdout())
	reg := session.NewRegistry(newDialer(), out, registryOptions(settings)...)
	defer reg.Close()

	n, err := reg.Launch(session.LaunchRequest{
		Hosts:   plan.Hosts,
		User:    plan.User,
		KeyPath: plan.KeyPath,
		Command: plan.Command,
		Secret:  secret,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Launched %d session(s) running '%s'.\n", n, plan.Command)

	stdinFd := int(os.Stdin.Fd())
	if !runNoInput && !runPasswordStdin && term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			logger.Log.Warnf("Keystroke relay disabled: %v", err)
		} else {
			defer func() { _ = term.Restore(stdinFd, oldState) }()
			out.setRaw(true)
			r := &relay{sink: reg, target: runAttach, echo: out.Echo}
			go r.run(os.Stdin)
		}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				out.Flush()
			case <-done:
				return
			}
		}
	}()

	_ = reg.Wait(context.Background())
	close(done)
	out.Flush()

	cancelled := 0
	for _, h := range plan.Hosts {
		if o, ok := reg.LastOutcome(h); ok && o.Event == nil {
			cancelled++
		}
	}
	if failed := out.Summary(cancelled); failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}
