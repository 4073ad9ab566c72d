package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bilalbayram/adlens/internal/cli/cmd"
)

const appName = "adlens"

var Version = "dev"

type GlobalFlags struct {
	Profile string
	Output  string
	Debug   bool
}

func Execute() error {
	root := NewRootCommand()
	return root.Execute()
}

func NewRootCommand() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:               appName,
		Short:             "Ads reporting dashboard engine",
		Long:              "adlens loads ads insights into a windowed report cache and renders filtered, aggregated views.",
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: validateGlobalFlags(flags),
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.Flags().BoolP("version", "v", false, "Print the version")

	root.PersistentFlags().StringVar(&flags.Profile, "profile", "", "Auth profile name")
	root.PersistentFlags().StringVar(&flags.Output, "output", "table", "Output format: json|jsonl|table|csv")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")

	runtime := cmd.Runtime{
		Profile: &flags.Profile,
		Output:  &flags.Output,
		Debug:   &flags.Debug,
	}
	root.AddCommand(cmd.NewAuthCommand(runtime))
	root.AddCommand(cmd.NewReportCommand(runtime))
	root.AddCommand(cmd.NewServeCommand(runtime))
	return root
}

func validateGlobalFlags(flags *GlobalFlags) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		switch flags.Output {
		case "json", "jsonl", "table", "csv":
			return nil
		default:
			return WrapExit(ExitCodeInput, fmt.Errorf("invalid --output value %q; expected json|jsonl|table|csv", flags.Output))
		}
	}
}
