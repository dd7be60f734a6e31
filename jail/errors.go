package jail

import (
	"fmt"
	"sort"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// Sentinel errors for matching with errors.Is.  Syscall-level failures are
// folded into these at the boundary so callers never match on raw errnos.
var (
	// ErrNotFound reports that no jail matched the jid or name.
	ErrNotFound = errors.New("jail not found")
	// ErrAlreadyExists reports a name collision on create.
	ErrAlreadyExists = errors.New("jail already exists")
	// ErrAmbiguousName reports a name that is also another jail's jid.
	ErrAmbiguousName = errors.New("ambiguous jail name")
	// ErrParamUnknown reports a parameter the kernel does not register.
	ErrParamUnknown = errors.New("unknown jail parameter")
	// ErrParamTypeMismatch reports a value that does not fit the kernel's
	// declared type for the parameter.
	ErrParamTypeMismatch = errors.New("parameter type mismatch")
	// ErrPermission reports insufficient privilege for the operation.
	ErrPermission = errors.New("permission denied")
	// ErrProcessAlreadyWaited reports a second Wait on the same process.
	ErrProcessAlreadyWaited = errors.New("process already waited")
	// ErrKernelUnsupported reports a facility the running kernel lacks.
	ErrKernelUnsupported = errors.New("kernel support missing")
)

// Error carries the failing jail operation along with the kernel's errmsg
// text when the syscall supplied one.
type Error struct {
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("jail: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("jail: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrapErrno converts a raw errno from a jail syscall into an *Error wrapping
// the matching sentinel.  Errnos with no sentinel pass through unchanged so
// nothing is lost for callers that need the raw value.
func wrapErrno(op, errmsg string, errno error) error {
	err := errno
	switch errno {
	case syscall.ENOENT, syscall.ESRCH:
		err = errors.Wrap(ErrNotFound, errno.Error())
	case syscall.EEXIST:
		err = errors.Wrap(ErrAlreadyExists, errno.Error())
	case syscall.EPERM, syscall.EACCES:
		err = errors.Wrap(ErrPermission, errno.Error())
	case syscall.ECHILD:
		err = errors.Wrap(ErrProcessAlreadyWaited, errno.Error())
	case syscall.ENOSYS:
		err = errors.Wrap(ErrKernelUnsupported, errno.Error())
	}
	return &Error{Op: op, Msg: errmsg, Err: err}
}

// SpawnStage identifies where in the start sequence a spawn failed.
type SpawnStage string

const (
	// StageStdio covers pipe and terminal allocation before the fork.
	StageStdio SpawnStage = "stdio"
	// StageAttach covers placing the child inside the jail.
	StageAttach SpawnStage = "attach"
	// StageExec covers the exec of the target binary.
	StageExec SpawnStage = "exec"
)

// SpawnError reports a failure to start a process inside a jail.  The child
// never runs outside the jail: attach happens before exec, and a failure at
// either stage leaves no stray process behind.
type SpawnError struct {
	Stage SpawnStage
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("jail: spawn: %s: %v", e.Stage, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ParamErrors reports per-parameter failures from a batch read.  It matches
// a target via errors.Is when every entry matches.
type ParamErrors map[string]error

func (pe ParamErrors) Error() string {
	names := make([]string, 0, len(pe))
	for name := range pe {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, pe[name])
	}
	return "jail: parameters: " + strings.Join(parts, "; ")
}

func (pe ParamErrors) Is(target error) bool {
	if len(pe) == 0 {
		return false
	}
	for _, err := range pe {
		if !errors.Is(err, target) {
			return false
		}
	}
	return true
}
