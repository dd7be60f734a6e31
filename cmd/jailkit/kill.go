package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/jailkit/jailkit/jail"
)

func killCommand() *cobra.Command {
	var pid int
	cmd := &cobra.Command{
		Use:   "kill <jail> [signal]",
		Short: "Send a signal to the processes inside a jail",
		Long: `Send a signal to the processes inside a jail.

If the signal is not specified, SIGTERM is sent.  By default every
process inside the jail is signaled; --pid targets a single process.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			disableUsage(cmd)
			sigstr := "SIGTERM"
			if len(args) == 2 {
				sigstr = args[1]
			}
			signal, err := parseSignal(sigstr)
			if err != nil {
				return err
			}
			j, err := jail.FromName(args[0])
			if err != nil {
				return err
			}
			if pid != 0 {
				return j.KillPID(cmd.Context(), pid, signal)
			}
			return j.KillAll(cmd.Context(), signal)
		},
	}
	cmd.Flags().IntVarP(&pid, "pid", "p", 0, "send the signal to a specific process ID")
	return cmd
}

// parseSignal accepts a signal number, a name like SIGTERM, or the short
// form TERM.
func parseSignal(rawSignal string) (unix.Signal, error) {
	if n, err := strconv.Atoi(rawSignal); err == nil {
		return unix.Signal(n), nil
	}
	sig := strings.ToUpper(rawSignal)
	if !strings.HasPrefix(sig, "SIG") {
		sig = "SIG" + sig
	}
	signal := unix.SignalNum(sig)
	if signal == 0 {
		return -1, fmt.Errorf("unknown signal %q", rawSignal)
	}
	return signal, nil
}
