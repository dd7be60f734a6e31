package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jailkit/jailkit/jail"
)

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <jail> <parameter> [parameter ...]",
		Short: "Read jail parameters",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			disableUsage(cmd)
			j, err := jail.FromName(args[0])
			if err != nil {
				return err
			}
			values, err := j.Params(args[1:]...)
			for _, name := range args[1:] {
				if v, ok := values[name]; ok {
					fmt.Printf("%s=%s\n", name, v)
				}
			}
			var perr jail.ParamErrors
			if errors.As(err, &perr) {
				for name, e := range perr {
					fmt.Printf("%s: %v\n", name, e)
				}
			}
			return err
		},
	}
}
