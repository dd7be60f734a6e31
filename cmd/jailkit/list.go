package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jailkit/jailkit/jail"
)

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active jails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			disableUsage(cmd)
			listings, err := jail.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 8, 2, ' ', 0)
			fmt.Fprintln(w, "JID\tNAME\tHOSTNAME\tPATH")
			for _, l := range listings {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.JID, l.Name, l.Hostname, l.Root)
			}
			return w.Flush()
		},
	}
}
