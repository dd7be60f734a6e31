package jail

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"syscall"
	"unsafe"
)

// ID identifies an active jail.  A jid is only meaningful while the jail it
// names is running; the kernel may recycle the number for an unrelated jail
// after removal.
type ID int32

func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// Flags accepted by jail_set(2) and jail_get(2).
const (
	flagCreate = 0x01
	flagUpdate = 0x02
	flagAttach = 0x04
	flagDying  = 0x08
)

const errmsgLen = 256

// iovList accumulates name/value iovec pairs for jail_set and jail_get.
// The buffers backing each value are referenced from the iovecs and stay
// reachable until the syscall returns.
type iovList struct {
	iovs   []syscall.Iovec
	errmsg []byte
}

func newIovList() *iovList {
	return &iovList{}
}

func (l *iovList) push(name string, value *byte, valuesize int) error {
	key, err := syscall.ByteSliceFromString(name)
	if err != nil {
		return err
	}
	l.iovs = append(l.iovs, makeIovec(key, value, valuesize)...)
	return nil
}

// pushString adds a NUL-terminated string value.
func (l *iovList) pushString(name, value string) error {
	val, err := syscall.ByteSliceFromString(value)
	if err != nil {
		return err
	}
	return l.push(name, &val[0], len(val))
}

// pushBytes adds a raw value.  The buffer doubles as the output location
// for jail_get.
func (l *iovList) pushBytes(name string, value []byte) error {
	if len(value) == 0 {
		return l.push(name, nil, 0)
	}
	return l.push(name, &value[0], len(value))
}

// pushInt32 adds a 32-bit integer value.
func (l *iovList) pushInt32(name string, value int32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(value))
	return l.push(name, &buf[0], 4)
}

// pushFlag adds a boolean parameter, which the kernel recognizes by name
// presence alone.
func (l *iovList) pushFlag(name string) error {
	return l.push(name, nil, 0)
}

func (l *iovList) kernelMsg() string {
	if i := bytes.IndexByte(l.errmsg, 0); i > 0 {
		return string(l.errmsg[:i])
	}
	return ""
}

// set performs jail_set(2) with the accumulated iovecs.
func (l *iovList) set(flags int) (ID, error) {
	return l.call(syscall.SYS_JAIL_SET, "jail_set", flags)
}

// get performs jail_get(2) with the accumulated iovecs.
func (l *iovList) get(flags int) (ID, error) {
	return l.call(syscall.SYS_JAIL_GET, "jail_get", flags)
}

func (l *iovList) call(callnum uintptr, op string, flags int) (ID, error) {
	l.errmsg = make([]byte, errmsgLen)
	if err := l.pushBytes("errmsg", l.errmsg); err != nil {
		return -1, err
	}
	jid, err := iovSyscall(callnum, l.iovs, flags)
	if err != nil {
		return jid, wrapErrno(op, l.kernelMsg(), err)
	}
	return jid, nil
}

func makeIovec(name []byte, value *byte, valuesize int) []syscall.Iovec {
	iovecs := make([]syscall.Iovec, 2)

	iovecs[0].Base = &name[0]
	iovecs[0].SetLen(len(name))

	iovecs[1].Base = value
	iovecs[1].SetLen(valuesize)
	return iovecs
}

// attach attaches the current process to the jail
func attach(jid ID) error {
	return jidSyscall(syscall.SYS_JAIL_ATTACH, "jail_attach", jid)
}

// remove destroys the jail, killing all processes within it
func remove(jid ID) error {
	return jidSyscall(syscall.SYS_JAIL_REMOVE, "jail_remove", jid)
}

func jidSyscall(callnum uintptr, op string, jid ID) error {
	_, _, errno := syscall.Syscall(callnum, uintptr(jid), 0, 0)
	if errno != 0 {
		return wrapErrno(op, "", errno)
	}
	return nil
}

func iovSyscall(callnum uintptr, iovecs []syscall.Iovec, flags int) (ID, error) {
	jid, _, errno := syscall.Syscall(callnum, uintptr(unsafe.Pointer(&iovecs[0])), uintptr(len(iovecs)), uintptr(flags))
	if int32(jid) == -1 || errno != 0 {
		return ID(jid), errno
	}
	return ID(jid), nil
}
