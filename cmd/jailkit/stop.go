package main

import (
	"github.com/spf13/cobra"

	"github.com/jailkit/jailkit/jail"
)

func stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <jail>",
		Short: "Stop a jail, killing all processes inside it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			disableUsage(cmd)
			j, err := jail.FromName(args[0])
			if err != nil {
				return err
			}
			return j.Stop()
		},
	}
}
