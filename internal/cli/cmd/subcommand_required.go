package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

type subcommandRequiredError struct {
	err error
}

func (e *subcommandRequiredError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *subcommandRequiredError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *subcommandRequiredError) AlreadyPrinted() bool {
	return true
}

// newGroupCommand builds a command that only hosts subcommands. Running it
// bare prints usage to stderr and fails.
func newGroupCommand(use string, short string, children ...*cobra.Command) *cobra.Command {
	group := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return requireSubcommand(cmd, cmd.CommandPath())
		},
	}
	group.AddCommand(children...)
	return group
}

func requireSubcommand(cmd *cobra.Command, commandName string) error {
	message := fmt.Sprintf("%s requires a subcommand", commandName)
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), message)

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	if stdout != stderr {
		cmd.SetOut(stderr)
		defer cmd.SetOut(stdout)
	}
	if err := cmd.Help(); err != nil {
		return &subcommandRequiredError{err: fmt.Errorf("%s: print help: %w", message, err)}
	}
	return &subcommandRequiredError{err: errors.New(message)}
}

func mustMarkFlagRequired(cmd *cobra.Command, name string) {
	if err := cmd.MarkFlagRequired(name); err != nil {
		panic(fmt.Sprintf("mark flag %q required for %s: %v", name, cmd.Name(), err))
	}
}
