package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/jailkit/jailkit/jail"
)

func attachCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <jail> [command ...]",
		Short: "Attach this process to a jail and exec a command",
		Long: `Attach this process to a jail and exec a command (default /bin/sh).

Attaching is irreversible: the process and everything it execs stay
confined to the jail.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			disableUsage(cmd)
			j, err := jail.FromName(args[0])
			if err != nil {
				return err
			}
			argv := args[1:]
			if len(argv) == 0 {
				argv = []string{"/bin/sh"}
			}
			if err := j.Attach(); err != nil {
				return err
			}
			return unix.Exec(argv[0], argv, os.Environ())
		},
	}
}
