package newsdigest

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the CLI.
func NewRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           rootCommandUse,
		Short:         rootCommandShort,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.AddCommand(newRunCommand(), newListCommand())
	return rootCommand
}

func Execute() error {
	return NewRootCommand().Execute()
}
