package jail

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// The kernel describes every jail parameter as a sysctl under
// security.jail.param.  The sysctl's type is the parameter's wire type and
// its value encodes the buffer size: string parameters report their maximum
// length as a decimal string, struct parameters carry the element size in
// the leading machine word, and the numeric types are fixed width.

const paramSysctlPrefix = "security.jail.param."

// sysctl kind, low nibble of the oidfmt kind word.
type ctlType uint32

const (
	ctlTypeNode   ctlType = 1
	ctlTypeInt    ctlType = 2
	ctlTypeString ctlType = 3
	ctlTypeS64    ctlType = 4
	ctlTypeStruct ctlType = 5
	ctlTypeUint   ctlType = 6
	ctlTypeLong   ctlType = 7
	ctlTypeUlong  ctlType = 8
	ctlTypeU64    ctlType = 9
	ctlTypeU8     ctlType = 10
	ctlTypeU16    ctlType = 11
	ctlTypeS8     ctlType = 12
	ctlTypeS16    ctlType = 13
	ctlTypeS32    ctlType = 14
	ctlTypeU32    ctlType = 15

	ctlTypeMask = 0xf
)

func (t ctlType) String() string {
	switch t {
	case ctlTypeNode:
		return "node"
	case ctlTypeInt:
		return "int"
	case ctlTypeString:
		return "string"
	case ctlTypeS64:
		return "int64"
	case ctlTypeStruct:
		return "struct"
	case ctlTypeUint:
		return "uint"
	case ctlTypeLong:
		return "long"
	case ctlTypeUlong:
		return "ulong"
	case ctlTypeU64:
		return "uint64"
	case ctlTypeU8:
		return "uint8"
	case ctlTypeU16:
		return "uint16"
	case ctlTypeS8:
		return "int8"
	case ctlTypeS16:
		return "int16"
	case ctlTypeS32:
		return "int32"
	case ctlTypeU32:
		return "uint32"
	}
	return "unknown"
}

// signed reports whether the type decodes to a signed integer.
func (t ctlType) signed() bool {
	switch t {
	case ctlTypeInt, ctlTypeS64, ctlTypeLong, ctlTypeS8, ctlTypeS16, ctlTypeS32:
		return true
	}
	return false
}

// width returns the fixed byte width of a numeric type, or 0 for
// variable-length types.
func (t ctlType) width() int {
	switch t {
	case ctlTypeU8, ctlTypeS8:
		return 1
	case ctlTypeU16, ctlTypeS16:
		return 2
	case ctlTypeInt, ctlTypeUint, ctlTypeS32, ctlTypeU32:
		return 4
	case ctlTypeS64, ctlTypeU64, ctlTypeLong, ctlTypeUlong:
		return 8
	}
	return 0
}

const ctlMaxName = 24 // CTL_MAXNAME

// sysctlMib is the raw mib-addressed form of sysctl(3), needed for the
// meta operations (name2oid, oidfmt, nextoid) that the name-based helpers
// in x/sys/unix do not expose.
func sysctlMib(mib []int32, old []byte, newval []byte) (int, error) {
	var oldlen uintptr
	var oldp, newp unsafe.Pointer
	if old != nil {
		oldlen = uintptr(len(old))
		oldp = unsafe.Pointer(&old[0])
	}
	var newlen uintptr
	if len(newval) > 0 {
		newp = unsafe.Pointer(&newval[0])
		newlen = uintptr(len(newval))
	}
	_, _, errno := syscall.Syscall6(syscall.SYS___SYSCTL,
		uintptr(unsafe.Pointer(&mib[0])), uintptr(len(mib)),
		uintptr(oldp), uintptr(unsafe.Pointer(&oldlen)),
		uintptr(newp), newlen)
	if errno != 0 {
		return 0, errno
	}
	return int(oldlen), nil
}

// nameToOid resolves a sysctl name to its oid via the {0,3} meta node.
func nameToOid(name string) ([]int32, error) {
	buf := make([]byte, ctlMaxName*4)
	n, err := sysctlMib([]int32{0, 3}, buf, []byte(name))
	if err != nil {
		return nil, err
	}
	oid := make([]int32, n/4)
	for i := range oid {
		oid[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return oid, nil
}

// oidFmt returns the kind word and format string of an oid via {0,4}.
func oidFmt(oid []int32) (uint32, string, error) {
	mib := append([]int32{0, 4}, oid...)
	buf := make([]byte, 1024)
	n, err := sysctlMib(mib, buf, nil)
	if err != nil {
		return 0, "", err
	}
	if n < 4 {
		return 0, "", errors.New("sysctl: short oidfmt response")
	}
	kind := binary.LittleEndian.Uint32(buf)
	format := buf[4:n]
	if i := bytes.IndexByte(format, 0); i >= 0 {
		format = format[:i]
	}
	return kind, string(format), nil
}

// nextOid returns the oid following the given one in tree order, via {0,2}.
func nextOid(oid []int32) ([]int32, error) {
	mib := append([]int32{0, 2}, oid...)
	buf := make([]byte, ctlMaxName*4)
	n, err := sysctlMib(mib, buf, nil)
	if err != nil {
		return nil, err
	}
	next := make([]int32, n/4)
	for i := range next {
		next[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return next, nil
}

// oidName resolves an oid back to its dotted name via {0,1}.
func oidName(oid []int32) (string, error) {
	mib := append([]int32{0, 1}, oid...)
	buf := make([]byte, 1024)
	n, err := sysctlMib(mib, buf, nil)
	if err != nil {
		return "", err
	}
	name := buf[:n]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name), nil
}

// paramType describes the kernel's declaration of one jail parameter.
type paramType struct {
	typ  ctlType
	size int
	// boolFmt is set for parameters registered with the "B" sysctl
	// format: flag parameters that the kernel sets by name presence
	// (or the "no" form) rather than by value.
	boolFmt bool
}

// paramInfo probes the kernel's declared type and buffer size for a jail
// parameter.  Unknown keys surface as ErrParamUnknown.
func paramInfo(name string) (paramType, error) {
	ctlname := paramSysctlPrefix + name
	oid, err := nameToOid(ctlname)
	if err != nil {
		if err == unix.ENOENT {
			return paramType{}, errors.Wrap(ErrParamUnknown, name)
		}
		return paramType{}, errors.Wrapf(err, "sysctl: name2oid %s", ctlname)
	}
	kind, format, err := oidFmt(oid)
	if err != nil {
		return paramType{}, errors.Wrapf(err, "sysctl: oidfmt %s", ctlname)
	}
	// "B" marks flag parameters.  The "E,jailsys" enums (ip4, ip6, vnet)
	// marshal as plain ints.
	pt := paramType{
		typ:     ctlType(kind & ctlTypeMask),
		boolFmt: format == "B",
	}

	if w := pt.typ.width(); w > 0 {
		pt.size = w
		return pt, nil
	}
	switch pt.typ {
	case ctlTypeString:
		// The sysctl value is the maximum string length, as text.
		v, err := unix.Sysctl(ctlname)
		if err != nil {
			return paramType{}, errors.Wrapf(err, "sysctl: read %s", ctlname)
		}
		size, err := strconv.Atoi(strings.TrimRight(v, "\x00"))
		if err != nil {
			return paramType{}, errors.Wrapf(ErrParamTypeMismatch, "%s: string length %q is not a number", name, v)
		}
		pt.size = size
		return pt, nil
	case ctlTypeStruct:
		// The sysctl value leads with the element size.
		raw, err := unix.SysctlRaw(ctlname)
		if err != nil {
			return paramType{}, errors.Wrapf(err, "sysctl: read %s", ctlname)
		}
		if len(raw) < 8 {
			return paramType{}, errors.Wrapf(ErrParamTypeMismatch, "%s: struct descriptor too short", name)
		}
		pt.size = int(binary.LittleEndian.Uint64(raw))
		return pt, nil
	}
	return paramType{}, errors.Wrapf(ErrParamTypeMismatch, "%s: unsupported parameter type %v", name, pt.typ)
}

// maxAddrsPerFamily reads security.jail.jail_max_af_ips, the upper bound on
// the number of addresses carried by ip4.addr and ip6.addr.
func maxAddrsPerFamily() (int, error) {
	v, err := unix.SysctlUint32("security.jail.jail_max_af_ips")
	if err != nil {
		return 0, errors.Wrap(err, "sysctl: jail_max_af_ips")
	}
	return int(v), nil
}

// paramNames walks the security.jail.param subtree and returns every
// parameter the running kernel registers, relative to the prefix.
func paramNames() ([]string, error) {
	base, err := nameToOid(strings.TrimSuffix(paramSysctlPrefix, "."))
	if err != nil {
		return nil, errors.Wrap(err, "sysctl: resolve param root")
	}
	names := make([]string, 0, 64)
	oid := base
	for {
		next, err := nextOid(oid)
		if err != nil {
			if err == unix.ENOENT {
				break
			}
			return nil, errors.Wrap(err, "sysctl: walk param tree")
		}
		if len(next) < len(base) || !oidHasPrefix(next, base) {
			break
		}
		oid = next
		kind, _, err := oidFmt(next)
		if err != nil {
			continue
		}
		if ctlType(kind&ctlTypeMask) == ctlTypeNode {
			continue
		}
		name, err := oidName(next)
		if err != nil {
			continue
		}
		names = append(names, strings.TrimPrefix(name, paramSysctlPrefix))
	}
	return names, nil
}

func oidHasPrefix(oid, prefix []int32) bool {
	if len(oid) < len(prefix) {
		return false
	}
	for i := range prefix {
		if oid[i] != prefix[i] {
			return false
		}
	}
	return true
}
