package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jailkit/jailkit"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of jailkit",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Println(jailkit.Version())
		},
	}
}
