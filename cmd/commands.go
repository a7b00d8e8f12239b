package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mensylisir/xmremote/config"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands that can be run",
	Args:  cobra.NoArgs,
	RunE:  runCommandsList,
}

var commandsSelectCmd = &cobra.Command{
	Use:   "select COMMAND",
	Short: "Make COMMAND the default for run",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommandsSelect,
}

func init() {
	commandsCmd.AddCommand(commandsSelectCmd)
}

func loadCommands() ([]string, error) {
	return config.LoadCommands(commandsPath(), config.DefaultCommand)
}

func runCommandsList(cmd *cobra.Command, args []string) error {
	commands, err := loadCommands()
	if err != nil {
		return err
	}
	selected := config.PickCommand(commands, settings.SelectedCommand)
	for _, c := range commands {
		mark := " "
		if c == selected {
			mark = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, c)
	}
	return nil
}

func runCommandsSelect(cmd *cobra.Command, args []string) error {
	commands, err := loadCommands()
	if err != nil {
		return err
	}
	found := false
	for _, c := range commands {
		if c == args[0] {
			found = true
			break
		}
	}
	if !found {
		return errors.Errorf("%q is not in %s", args[0], commandsPath())
	}
	settings.SelectedCommand = args[0]
	if err := repo.Save(settings); err != nil {
		return err
	}
	return runCommandsList(cmd, nil)
}
