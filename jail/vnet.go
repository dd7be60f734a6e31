package jail

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Values for the "vnet" and "ip4"/"ip6" jailsys parameters.
const (
	vnetDisable = 0
	vnetNew     = 1
	vnetInherit = 2
)

// VNetNew configures a jail with its own virtual network stack; requires
// a VIMAGE kernel.
func VNetNew() Value { return IntValue(vnetNew) }

// VNetInherit configures a jail to share the host's network stack.
func VNetInherit() Value { return IntValue(vnetInherit) }

// VNetSupported reports whether the running kernel was built with VIMAGE
// support.  A kernel without the feature sysctl simply lacks the feature.
func VNetSupported() (bool, error) {
	v, err := unix.SysctlUint32("kern.features.vimage")
	if err != nil {
		if err == unix.ENOENT {
			return false, nil
		}
		return false, errors.Wrap(err, "sysctl: kern.features.vimage")
	}
	return v == 1, nil
}

// RequireVNet returns ErrKernelUnsupported unless the kernel has VIMAGE.
func RequireVNet() error {
	ok, err := VNetSupported()
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrKernelUnsupported, "VIMAGE")
	}
	return nil
}
