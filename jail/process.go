package jail

import (
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"github.com/pkg/errors"
)

// StdioMode selects how a spawned process's standard descriptors are set
// up.
type StdioMode int

const (
	// StdioInherit passes the caller's own stdin, stdout and stderr
	// through to the child.
	StdioInherit StdioMode = iota
	// StdioPipes gives the child fresh pipes and leaves the parent
	// holding the other ends.
	StdioPipes
	// StdioTerminal runs the child on a freshly allocated pseudo
	// terminal, with the parent holding the master side.
	StdioTerminal
)

// Cmd describes a process to be spawned inside a jail.  Argv[0] is the
// program path as seen from inside the jail's root; it is not resolved
// against the host's PATH.
type Cmd struct {
	Argv []string
	// Env is the child's environment.  nil inherits the caller's
	// environment (which the jailed program will see unfiltered).
	Env []string
	// Dir is the working directory, resolved inside the jail.
	Dir   string
	Stdio StdioMode

	jail *Jail
}

// Command prepares a process to run inside the jail.
func (j *Jail) Command(argv ...string) *Cmd {
	return &Cmd{Argv: argv, jail: j}
}

// Process is a handle to a process spawned inside a jail.  It holds only a
// non-owning reference to the jail (the jid, for diagnostics): stopping the
// jail does not invalidate the handle, it just causes the process to die
// and report that exit status.
type Process struct {
	cmd *exec.Cmd
	jid ID
	tty *os.File

	stdin          io.WriteCloser
	stdout, stderr io.Reader

	waited   bool
	exitCode int
}

// Start spawns the process inside the jail.  The stdio descriptors are
// duplicated, the jail is entered, and only then is the process image
// replaced, all inside the runtime's fork/exec path with no observable
// intermediate state: jail entry happens in the forked child before exec,
// so the new program image never runs outside the jail, and a child whose
// jail entry fails is reaped before Start returns.  Failures are tagged
// with the stage that caused them.
func (c *Cmd) Start() (*Process, error) {
	if len(c.Argv) == 0 {
		return nil, errors.New("jail: spawn: empty argv")
	}
	cmd := &exec.Cmd{
		Path: c.Argv[0],
		Args: c.Argv,
		Env:  c.Env,
		Dir:  c.Dir,
		SysProcAttr: &syscall.SysProcAttr{
			Jail: int(c.jail.jid),
		},
	}
	p := &Process{cmd: cmd, jid: c.jail.jid}

	var childEnds []io.Closer
	var parentEnds []io.Closer
	closeAll := func(cs []io.Closer) {
		for _, f := range cs {
			f.Close()
		}
	}

	switch c.Stdio {
	case StdioInherit:
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	case StdioPipes:
		// Plain os.Pipe pairs rather than the exec package's managed
		// pipes, so that output buffered at process exit stays
		// readable until the caller drains it to EOF.
		stdinR, stdinW, err := os.Pipe()
		if err != nil {
			return nil, &SpawnError{Stage: StageStdio, Err: err}
		}
		stdoutR, stdoutW, err := os.Pipe()
		if err != nil {
			closeAll([]io.Closer{stdinR, stdinW})
			return nil, &SpawnError{Stage: StageStdio, Err: err}
		}
		stderrR, stderrW, err := os.Pipe()
		if err != nil {
			closeAll([]io.Closer{stdinR, stdinW, stdoutR, stdoutW})
			return nil, &SpawnError{Stage: StageStdio, Err: err}
		}
		cmd.Stdin = stdinR
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW
		childEnds = []io.Closer{stdinR, stdoutW, stderrW}
		parentEnds = []io.Closer{stdinW, stdoutR, stderrR}
		p.stdin = stdinW
		p.stdout = stdoutR
		p.stderr = stderrR
	case StdioTerminal:
		tty, err := pty.Start(cmd)
		if err != nil {
			return nil, c.startError(err)
		}
		p.tty = tty
		p.stdin = tty
		p.stdout = tty
		logger.WithField("jid", c.jail.jid).WithField("pid", cmd.Process.Pid).Debug("spawned process on pty")
		return p, nil
	}

	if err := cmd.Start(); err != nil {
		closeAll(childEnds)
		closeAll(parentEnds)
		return nil, c.startError(err)
	}
	// The child holds its own copies now.
	closeAll(childEnds)
	logger.WithField("jid", c.jail.jid).WithField("pid", cmd.Process.Pid).Debug("spawned process")
	return p, nil
}

// startError classifies a fork/exec failure.  The runtime reports jail
// entry and image replacement failures identically, so a dead jail is the
// tiebreak: if the jail is gone the attach stage is what failed.
func (c *Cmd) startError(err error) error {
	// A zero jid never requests jail entry, so only exec can have failed.
	if c.jail.jid > 0 && !c.jail.Alive() {
		return &SpawnError{
			Stage: StageAttach,
			Err:   errors.Wrapf(ErrNotFound, "jail %s: %v", c.jail.jid, err),
		}
	}
	return &SpawnError{Stage: StageExec, Err: err}
}

// Run spawns the process and waits for it to exit.
func (c *Cmd) Run() (int, error) {
	p, err := c.Start()
	if err != nil {
		return 0, err
	}
	return p.Wait()
}

// PID returns the process's host-visible pid.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// JID returns the jid the process was spawned into.  It is diagnostic
// only; the jail may no longer exist.
func (p *Process) JID() ID { return p.jid }

// Stdin returns the write end of the child's stdin, or nil unless the
// process was spawned with StdioPipes or StdioTerminal.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the read end of the child's stdout, or nil unless the
// process was spawned with StdioPipes or StdioTerminal.
func (p *Process) Stdout() io.Reader { return p.stdout }

// Stderr returns the read end of the child's stderr, or nil unless the
// process was spawned with StdioPipes.  In terminal mode stderr shares the
// tty with stdout.
func (p *Process) Stderr() io.Reader { return p.stderr }

// Tty returns the pty master for a process spawned with StdioTerminal.
func (p *Process) Tty() *os.File { return p.tty }

// CloseStdin closes the child's stdin, delivering EOF.
func (p *Process) CloseStdin() error {
	if p.stdin == nil {
		return errors.New("jail: process has no stdin pipe")
	}
	return p.stdin.Close()
}

// Wait blocks until the process exits and returns its exit code.  A
// process killed by a signal reports 128 plus the signal number, following
// shell convention.  Wait may be called exactly once; a second call
// reports ErrProcessAlreadyWaited, mirroring the kernel's ECHILD.
func (p *Process) Wait() (int, error) {
	if p.waited {
		return 0, errors.Wrapf(ErrProcessAlreadyWaited, "pid %d", p.cmd.Process.Pid)
	}
	err := p.cmd.Wait()
	p.waited = true
	if p.tty != nil {
		p.tty.Close()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, errors.Wrap(err, "jail: wait")
		}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			p.exitCode = 128 + int(ws.Signal())
		} else {
			p.exitCode = exitErr.ExitCode()
		}
	} else {
		p.exitCode = 0
	}
	logger.WithField("pid", p.cmd.Process.Pid).WithField("code", p.exitCode).Debug("process exited")
	return p.exitCode, nil
}

// Signal delivers a signal to the process.
func (p *Process) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// Kill delivers SIGKILL to the process.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}
