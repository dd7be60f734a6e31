package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jailkit/jailkit/jail"
)

func setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <jail> <parameter>=<value> [parameter=value ...]",
		Short: "Update parameters of a running jail",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make(map[string]jail.Value, len(args)-1)
			for _, arg := range args[1:] {
				name, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return errors.Errorf("invalid parameter %q, expected name=value", arg)
				}
				params[name] = parseValue(raw)
			}
			disableUsage(cmd)
			j, err := jail.FromName(args[0])
			if err != nil {
				return err
			}
			return j.SetParams(params)
		},
	}
}
