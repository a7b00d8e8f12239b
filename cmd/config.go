package cmd

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmremote/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change stored settings",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store one setting",
	Long: `Store one setting. Keys: user, key, hosts-file, commands-file, command,
known-hosts, ssh-config, log-dir, poll-interval, read-chunk-size,
cancel-wait, outcome-ttl, dial-timeout.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return errors.Wrap(err, "failed to print settings")
	}
	return enc.Close()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := applySetting(settings, args[0], args[1]); err != nil {
		return err
	}
	if err := repo.Save(settings); err != nil {
		return err
	}
	cmd.Printf("Saved %s to %s\n", args[0], repo.Path())
	return nil
}

func applySetting(s *config.Settings, key, value string) error {
	duration := func(d *config.Duration) error {
		v, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid duration for %s", key)
		}
		if v < 0 {
			return errors.Errorf("%s cannot be negative", key)
		}
		d.Duration = v
		return nil
	}

	switch key {
	case "user":
		s.User = value
	case "key":
		s.KeyPath = value
	case "hosts-file":
		s.HostsFile = value
	case "commands-file":
		s.CommandsFile = value
	case "command":
		if err := config.ValidateCommand(value); err != nil {
			return err
		}
		s.SelectedCommand = value
	case "known-hosts":
		s.KnownHostsFile = value
	case "ssh-config":
		s.SSHConfigFile = value
	case "log-dir":
		s.LogDir = value
	case "poll-interval":
		return duration(&s.Engine.PollInterval)
	case "cancel-wait":
		return duration(&s.Engine.CancelWait)
	case "outcome-ttl":
		return duration(&s.Engine.OutcomeTTL)
	case "dial-timeout":
		return duration(&s.Engine.DialTimeout)
	case "read-chunk-size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return errors.Errorf("read-chunk-size must be a positive integer, got %q", value)
		}
		s.Engine.ReadChunkSize = n
	default:
		return errors.Errorf("unknown setting %q", key)
	}
	return nil
}
