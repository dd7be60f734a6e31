package jail

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"
)

// KillPID sends a signal to a single process inside the jail via
// jexec(8).  Unlike Process.Signal this works for processes this handle
// did not spawn.
func (j *Jail) KillPID(ctx context.Context, pid int, signal unix.Signal) error {
	cmd := exec.CommandContext(ctx, "jexec", j.jid.String(), "kill", fmt.Sprintf("-%d", signal), strconv.Itoa(pid))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// KillAll sends a signal to every process inside the jail, without
// removing the jail itself.  Use Stop to both kill and remove.
func (j *Jail) KillAll(ctx context.Context, signal unix.Signal) error {
	return j.KillPID(ctx, -1, signal)
}
