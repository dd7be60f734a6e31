package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jailkit/jailkit/jail"
)

func execCommand() *cobra.Command {
	var terminal bool
	cmd := &cobra.Command{
		Use:   "exec <jail> <command> [args ...]",
		Short: "Run a command inside a jail",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			disableUsage(cmd)
			j, err := jail.FromName(args[0])
			if err != nil {
				return err
			}
			c := j.Command(args[1:]...)
			if !terminal {
				code, err := c.Run()
				if err != nil {
					return err
				}
				if code != 0 {
					return &exitError{code: code}
				}
				return nil
			}
			return runOnTerminal(c)
		},
	}
	cmd.Flags().BoolVarP(&terminal, "tty", "t", false, "run the command on a pseudo terminal")
	return cmd
}

// runOnTerminal spawns the command on a pty and bridges it to the
// caller's terminal, with stdin switched to raw mode for the duration.
func runOnTerminal(c *jail.Cmd) error {
	c.Stdio = jail.StdioTerminal
	p, err := c.Start()
	if err != nil {
		return err
	}
	stdin := int(os.Stdin.Fd())
	if term.IsTerminal(stdin) {
		oldState, err := term.MakeRaw(stdin)
		if err != nil {
			return err
		}
		defer term.Restore(stdin, oldState)
	}
	go io.Copy(p.Stdin(), os.Stdin)
	go io.Copy(os.Stdout, p.Stdout())
	code, err := p.Wait()
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}
