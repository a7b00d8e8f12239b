package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mensylisir/xmremote/config"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List hosts and whether they are selected",
	Long: `List the hosts from the hosts file. Hosts are selected unless they were
unchecked; the selection is stored in the settings file.`,
	Args: cobra.NoArgs,
	RunE: runHostsList,
}

var hostsCheckCmd = &cobra.Command{
	Use:   "check HOST...",
	Short: "Include hosts in the next run",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setHostsChecked(cmd, args, true)
	},
}

var hostsUncheckCmd = &cobra.Command{
	Use:   "uncheck HOST...",
	Short: "Leave hosts out of the next run",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setHostsChecked(cmd, args, false)
	},
}

func init() {
	hostsCmd.AddCommand(hostsCheckCmd)
	hostsCmd.AddCommand(hostsUncheckCmd)
}

func runHostsList(cmd *cobra.Command, args []string) error {
	hosts, err := config.LoadHosts(hostsPath())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(hosts) == 0 {
		fmt.Fprintf(out, "No hosts found in %s\n", hostsPath())
		return nil
	}
	for _, e := range config.HostEntries(hosts, settings) {
		mark := " "
		if e.Checked {
			mark = "x"
		}
		fmt.Fprintf(out, "[%s] %s\n", mark, e.Name)
	}
	return nil
}

func setHostsChecked(cmd *cobra.Command, hosts []string, checked bool) error {
	for _, h := range hosts {
		settings.SetChecked(h, checked)
	}
	if err := repo.Save(settings); err != nil {
		return err
	}
	return runHostsList(cmd, nil)
}
