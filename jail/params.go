package jail

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

// Kind enumerates the value types a jail parameter can carry.
type Kind int

const (
	KindBool Kind = iota + 1
	KindInt
	KindUint
	KindString
	KindBytes
	KindIPv4
	KindIPv6
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	}
	return "invalid"
}

// Value is a typed jail parameter value.  The kernel, not the caller,
// decides each parameter's wire type; encoding validates the value against
// the kernel's declaration and fails with ErrParamTypeMismatch rather than
// coercing.
type Value struct {
	kind  Kind
	num   int64
	unum  uint64
	str   string
	raw   []byte
	addrs []netip.Addr
}

func BoolValue(v bool) Value {
	val := Value{kind: KindBool}
	if v {
		val.num = 1
	}
	return val
}

func IntValue(v int64) Value { return Value{kind: KindInt, num: v} }

func UintValue(v uint64) Value { return Value{kind: KindUint, unum: v} }

func StringValue(v string) Value { return Value{kind: KindString, str: v} }

func BytesValue(v []byte) Value { return Value{kind: KindBytes, raw: v} }

func IPv4Value(addrs ...netip.Addr) Value { return Value{kind: KindIPv4, addrs: addrs} }

func IPv6Value(addrs ...netip.Addr) Value { return Value{kind: KindIPv6, addrs: addrs} }

func (v Value) Kind() Kind { return v.kind }

// AsBool unpacks a boolean.  Integer values of 0 and 1 also unpack, since
// the kernel reports boolean parameters as ints.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.num != 0, nil
	case KindInt:
		if v.num == 0 || v.num == 1 {
			return v.num != 0, nil
		}
	case KindUint:
		if v.unum == 0 || v.unum == 1 {
			return v.unum != 0, nil
		}
	}
	return false, errors.Wrapf(ErrParamTypeMismatch, "cannot unpack %v as bool", v.kind)
}

func (v Value) AsInt() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.num, nil
	case KindUint:
		if v.unum <= math.MaxInt64 {
			return int64(v.unum), nil
		}
	}
	return 0, errors.Wrapf(ErrParamTypeMismatch, "cannot unpack %v as int", v.kind)
}

func (v Value) AsUint() (uint64, error) {
	switch v.kind {
	case KindUint:
		return v.unum, nil
	case KindInt:
		if v.num >= 0 {
			return uint64(v.num), nil
		}
	}
	return 0, errors.Wrapf(ErrParamTypeMismatch, "cannot unpack %v as uint", v.kind)
}

func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", errors.Wrapf(ErrParamTypeMismatch, "cannot unpack %v as string", v.kind)
	}
	return v.str, nil
}

func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, errors.Wrapf(ErrParamTypeMismatch, "cannot unpack %v as bytes", v.kind)
	}
	return v.raw, nil
}

func (v Value) AsIPv4() ([]netip.Addr, error) {
	if v.kind != KindIPv4 {
		return nil, errors.Wrapf(ErrParamTypeMismatch, "cannot unpack %v as ipv4", v.kind)
	}
	return v.addrs, nil
}

func (v Value) AsIPv6() ([]netip.Addr, error) {
	if v.kind != KindIPv6 {
		return nil, errors.Wrapf(ErrParamTypeMismatch, "cannot unpack %v as ipv6", v.kind)
	}
	return v.addrs, nil
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.num)
	case KindUint:
		return fmt.Sprintf("%d", v.unum)
	case KindString:
		return v.str
	case KindBytes:
		return fmt.Sprintf("%x", v.raw)
	case KindIPv4, KindIPv6:
		parts := make([]string, len(v.addrs))
		for i, a := range v.addrs {
			parts[i] = a.String()
		}
		return strings.Join(parts, ",")
	}
	return "<invalid>"
}

// noName derives the negative form of a boolean parameter name: the "no"
// prefix attaches to the last dotted component, so "allow.mount" negates
// as "allow.nomount".
func noName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i+1] + "no" + name[i+1:]
	}
	return "no" + name
}

// encodeTo validates the value against the kernel's declared type for name
// and appends the wire representation to the iovec list.  This is the probe
// pass of the two-pass protocol: fixed-width values skip the size lookup
// their type already implies, while strings and structs take their bounds
// from the kernel.
func (v Value) encodeTo(l *iovList, name string) error {
	pt, err := paramInfo(name)
	if err != nil {
		return err
	}
	// Flag parameters are set by name presence (true) or the "no" form
	// (false); the kernel ignores any value bytes, so an int here would
	// silently enable the flag.  Accept bools, and 0/1 ints for the sake
	// of saved snapshots.
	if pt.boolFmt {
		b, err := v.AsBool()
		if err != nil {
			return errors.Wrapf(ErrParamTypeMismatch, "%s: kernel type is boolean", name)
		}
		if b {
			return l.pushFlag(name)
		}
		return l.pushFlag(noName(name))
	}
	switch v.kind {
	case KindBool:
		return errors.Wrapf(ErrParamTypeMismatch, "%s: kernel type is %v, not boolean", name, pt.typ)
	case KindInt, KindUint:
		w := pt.typ.width()
		if w == 0 {
			return errors.Wrapf(ErrParamTypeMismatch, "%s: kernel type is %v, not numeric", name, pt.typ)
		}
		buf, err := v.encodeNumeric(name, pt.typ, w)
		if err != nil {
			return err
		}
		return l.pushBytes(name, buf)
	case KindString:
		if pt.typ != ctlTypeString {
			return errors.Wrapf(ErrParamTypeMismatch, "%s: kernel type is %v, not string", name, pt.typ)
		}
		if len(v.str)+1 > pt.size {
			return errors.Wrapf(ErrParamTypeMismatch, "%s: string exceeds maximum length %d", name, pt.size-1)
		}
		return l.pushString(name, v.str)
	case KindBytes:
		if pt.typ != ctlTypeStruct {
			return errors.Wrapf(ErrParamTypeMismatch, "%s: kernel type is %v, not struct", name, pt.typ)
		}
		return l.pushBytes(name, v.raw)
	case KindIPv4, KindIPv6:
		if pt.typ != ctlTypeStruct {
			return errors.Wrapf(ErrParamTypeMismatch, "%s: kernel type is %v, not an address list", name, pt.typ)
		}
		buf, err := v.encodeAddrs(name, pt.size)
		if err != nil {
			return err
		}
		return l.pushBytes(name, buf)
	}
	return errors.Wrapf(ErrParamTypeMismatch, "%s: invalid value", name)
}

func (v Value) encodeNumeric(name string, typ ctlType, width int) ([]byte, error) {
	var u uint64
	if v.kind == KindInt {
		n := v.num
		if typ.signed() {
			min, max := int64(-1)<<(width*8-1), int64(1)<<(width*8-1)-1
			if n < min || n > max {
				return nil, errors.Wrapf(ErrParamTypeMismatch, "%s: %d out of range for %v", name, n, typ)
			}
		} else {
			if n < 0 || (width < 8 && n >= int64(1)<<(width*8)) {
				return nil, errors.Wrapf(ErrParamTypeMismatch, "%s: %d out of range for %v", name, n, typ)
			}
		}
		u = uint64(n)
	} else {
		u = v.unum
		if typ.signed() {
			if u > uint64(1)<<(width*8-1)-1 {
				return nil, errors.Wrapf(ErrParamTypeMismatch, "%s: %d out of range for %v", name, u, typ)
			}
		} else if width < 8 && u >= uint64(1)<<(width*8) {
			return nil, errors.Wrapf(ErrParamTypeMismatch, "%s: %d out of range for %v", name, u, typ)
		}
	}
	buf := make([]byte, width)
	switch width {
	case 1:
		buf[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(u))
	case 8:
		binary.LittleEndian.PutUint64(buf, u)
	}
	return buf, nil
}

func (v Value) encodeAddrs(name string, elemSize int) ([]byte, error) {
	want := 4
	if v.kind == KindIPv6 {
		want = 16
	}
	if elemSize != want {
		return nil, errors.Wrapf(ErrParamTypeMismatch, "%s: kernel element size %d does not match address family", name, elemSize)
	}
	buf := make([]byte, 0, len(v.addrs)*want)
	for _, a := range v.addrs {
		switch {
		case v.kind == KindIPv4 && a.Is4():
			b := a.As4()
			buf = append(buf, b[:]...)
		case v.kind == KindIPv6 && a.Is6() && !a.Is4In6():
			b := a.As16()
			buf = append(buf, b[:]...)
		default:
			return nil, errors.Wrapf(ErrParamTypeMismatch, "%s: address %s has the wrong family", name, a)
		}
	}
	return buf, nil
}

// decodeValue converts a kernel-filled buffer back into a Value.  Flag
// parameters decode as bools, the ip4.addr and ip6.addr arrays decode into
// address lists with unspecified entries dropped, and other struct
// parameters stay raw bytes.
func decodeValue(name string, pt paramType, buf []byte) (Value, error) {
	typ := pt.typ
	if pt.boolFmt && typ.width() > 0 {
		if len(buf) < typ.width() {
			return Value{}, errors.Wrapf(ErrParamTypeMismatch, "%s: short buffer for %v", name, typ)
		}
		return BoolValue(buf[0] != 0), nil
	}
	if w := typ.width(); w > 0 {
		if len(buf) < w {
			return Value{}, errors.Wrapf(ErrParamTypeMismatch, "%s: short buffer for %v", name, typ)
		}
		var u uint64
		switch w {
		case 1:
			u = uint64(buf[0])
		case 2:
			u = uint64(binary.LittleEndian.Uint16(buf))
		case 4:
			u = uint64(binary.LittleEndian.Uint32(buf))
		case 8:
			u = binary.LittleEndian.Uint64(buf)
		}
		if typ.signed() {
			// Sign-extend from the wire width.
			shift := uint(64 - w*8)
			return IntValue(int64(u<<shift) >> shift), nil
		}
		return UintValue(u), nil
	}
	switch typ {
	case ctlTypeString:
		return StringValue(cstring(buf)), nil
	case ctlTypeStruct:
		switch name {
		case "ip4.addr":
			return decodeAddrs(buf, 4)
		case "ip6.addr":
			return decodeAddrs(buf, 16)
		}
		return BytesValue(buf), nil
	}
	return Value{}, errors.Wrapf(ErrParamTypeMismatch, "%s: unsupported parameter type %v", name, typ)
}

func decodeAddrs(buf []byte, elemSize int) (Value, error) {
	if len(buf)%elemSize != 0 {
		return Value{}, errors.Wrapf(ErrParamTypeMismatch, "address buffer length %d is not a multiple of %d", len(buf), elemSize)
	}
	addrs := make([]netip.Addr, 0, len(buf)/elemSize)
	for off := 0; off < len(buf); off += elemSize {
		var a netip.Addr
		if elemSize == 4 {
			a = netip.AddrFrom4([4]byte(buf[off : off+4]))
		} else {
			a = netip.AddrFrom16([16]byte(buf[off : off+16]))
		}
		if a.IsUnspecified() {
			continue
		}
		addrs = append(addrs, a)
	}
	if elemSize == 4 {
		return IPv4Value(addrs...), nil
	}
	return IPv6Value(addrs...), nil
}

func cstring(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// getParam reads one parameter from a live jail: probe the type and size,
// then fetch with a buffer of exactly that size.
func getParam(jid ID, name string) (Value, error) {
	pt, err := paramInfo(name)
	if err != nil {
		return Value{}, err
	}
	size := pt.size
	if name == "ip4.addr" || name == "ip6.addr" {
		max, err := maxAddrsPerFamily()
		if err != nil {
			return Value{}, err
		}
		size *= max
	}
	l := newIovList()
	if err := l.pushInt32("jid", int32(jid)); err != nil {
		return Value{}, err
	}
	buf := make([]byte, size)
	if err := l.pushBytes(name, buf); err != nil {
		return Value{}, err
	}
	if _, err := l.get(0); err != nil {
		return Value{}, err
	}
	return decodeValue(name, pt, buf)
}

// setParams applies a batch of parameters to a live jail in one
// jail_set(2) update, so a batch either applies or fails as a unit.
func setParams(jid ID, params map[string]Value) error {
	l := newIovList()
	if err := l.pushInt32("jid", int32(jid)); err != nil {
		return err
	}
	for name, value := range params {
		if err := value.encodeTo(l, name); err != nil {
			return err
		}
	}
	_, err := l.set(flagUpdate)
	return err
}
