package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jailkit <command>",
		Short: "jailkit manages FreeBSD jails",
	}
	rootCmd.AddCommand(createCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(execCommand())
	rootCmd.AddCommand(attachCommand())
	rootCmd.AddCommand(killCommand())
	rootCmd.AddCommand(stopCommand())
	rootCmd.AddCommand(getCommand())
	rootCmd.AddCommand(setCommand())
	rootCmd.AddCommand(versionCommand())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitError carries a jailed child's exit code out to the shell.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var xe *exec.ExitError
	if errors.As(err, &xe) {
		return xe.ExitCode()
	}
	return 1
}

// disableUsage is a helper to disable the Usage output on errors.  This helper
// is used because we want usage output for input validation errors (wrong
// number of arguments, wrong type, etc) in both the cobra-provided validations
// and in PreRunE funcs, but we don't want that output for the actual command
// execution (RunE funcs).
func disableUsage(cmd *cobra.Command) {
	cmd.SetUsageFunc(func(*cobra.Command) error { return nil })
}
