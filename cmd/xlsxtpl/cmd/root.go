package cmd

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "xlsxtpl",
	Short:         "xlsxtpl — render XLSX templates against a JSON data context",
	Version:       Version,
	SilenceErrors: true,
}

// ExitError signals a non-zero exit code without cobra printing a
// second copy of the error — the render subcommand already
// write their own message to stderr before returning one of these.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return "" }

func Execute() error {
	return rootCmd.Execute()
}
