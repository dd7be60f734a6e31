package jail

import (
	"bytes"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Limit is one rctl(8) resource limit rule scoped to a jail, for example
// {Resource: "memoryuse", Action: "deny", Amount: "512m", Per: "jail"}.
type Limit struct {
	Resource string
	Action   string
	Amount   string
	Per      string
}

func (l Limit) rule(name string) string {
	buf := bytes.Buffer{}
	buf.WriteString("jail:")
	buf.WriteString(name)
	buf.WriteString(":")
	buf.WriteString(l.Resource)
	buf.WriteString(":")
	buf.WriteString(l.Action)
	buf.WriteString("=")
	buf.WriteString(l.Amount)
	if l.Per != "" {
		buf.WriteString("/")
		buf.WriteString(l.Per)
	}
	return buf.String()
}

// runRctl invokes rctl(8).  A variable so tests can substitute the
// runner.
var runRctl = func(args ...string) ([]byte, error) {
	return exec.Command("rctl", args...).CombinedOutput()
}

// applyLimits adds the rctl rules for a named jail.  A kernel without
// RACCT/RCTL enabled reports ErrKernelUnsupported.
func applyLimits(name string, limits []Limit) error {
	for _, l := range limits {
		rule := l.rule(name)
		out, err := runRctl("-a", rule)
		if err != nil {
			if rctlDisabled(out) {
				return errors.Wrapf(ErrKernelUnsupported, "rctl: %s", strings.TrimSpace(string(out)))
			}
			return errors.Wrapf(err, "rctl: add rule %q: %s", rule, strings.TrimSpace(string(out)))
		}
		logger.WithField("rule", rule).Debug("applied rctl rule")
	}
	return nil
}

// removeLimits drops every rctl rule scoped to the named jail.  A kernel
// without RACCT/RCTL has no rules to drop, so that condition is not an
// error here.
func removeLimits(name string) error {
	out, err := runRctl("-r", "jail:"+name)
	if err != nil && !rctlDisabled(out) {
		return errors.Wrapf(err, "rctl: remove rules for jail %q: %s", name, strings.TrimSpace(string(out)))
	}
	return nil
}

func rctlDisabled(out []byte) bool {
	return bytes.Contains(out, []byte("RACCT/RCTL present, but disabled"))
}
