package jail

import (
	"fmt"
	"syscall"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

type fakeIovec struct {
	name string
	val  []byte
}

func TestIovListLayout(t *testing.T) {
	tests := []struct {
		name  string
		build func(l *iovList) error
		iovec []fakeIovec
	}{{
		name: "string",
		build: func(l *iovList) error {
			return l.pushString("path", "/tmp/test/root")
		},
		iovec: []fakeIovec{{
			name: "path\x00",
			val:  []byte("/tmp/test/root\x00"),
		}},
	}, {
		name: "int32",
		build: func(l *iovList) error {
			return l.pushInt32("lastjid", 7)
		},
		iovec: []fakeIovec{{
			name: "lastjid\x00",
			val:  []byte{7, 0, 0, 0},
		}},
	}, {
		name: "flag",
		build: func(l *iovList) error {
			return l.pushFlag("persist")
		},
		iovec: []fakeIovec{{
			name: "persist\x00",
		}},
	}, {
		name: "bytes",
		build: func(l *iovList) error {
			return l.pushBytes("ip4.addr", []byte{127, 0, 0, 1, 10, 2, 2, 2})
		},
		iovec: []fakeIovec{{
			name: "ip4.addr\x00",
			val:  []byte{127, 0, 0, 1, 10, 2, 2, 2},
		}},
	}, {
		name: "combined",
		build: func(l *iovList) error {
			if err := l.pushString("name", "combined"); err != nil {
				return err
			}
			if err := l.pushInt32("jid", 3); err != nil {
				return err
			}
			return l.pushFlag("nopersist")
		},
		iovec: []fakeIovec{{
			name: "name\x00",
			val:  []byte("combined\x00"),
		}, {
			name: "jid\x00",
			val:  []byte{3, 0, 0, 0},
		}, {
			name: "nopersist\x00",
		}},
	}}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := newIovList()
			assert.NoError(t, tc.build(l), "build")
			converted, err := toFakeIovec(l.iovs)
			assert.NoError(t, err, "toFakeIovec")
			assert.EqualValues(t, tc.iovec, converted)
		})
	}
}

func TestKernelMsg(t *testing.T) {
	l := newIovList()
	l.errmsg = make([]byte, errmsgLen)
	assert.Equal(t, "", l.kernelMsg(), "untouched buffer")
	copy(l.errmsg, "jail \"x\" already exists\x00")
	assert.Equal(t, `jail "x" already exists`, l.kernelMsg())
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "42", ID(42).String())
	assert.Equal(t, "-1", ID(-1).String())
}

func toFakeIovec(actual []syscall.Iovec) ([]fakeIovec, error) {
	if len(actual)%2 != 0 {
		return nil, fmt.Errorf("expected even number of iovecs, got %d", len(actual))
	}
	iovecs := make([]fakeIovec, 0)
	for i := 0; i < len(actual); i += 2 {
		f, err := toSingleFakeIovec(actual[i : i+2])
		if err != nil {
			return nil, err
		}
		iovecs = append(iovecs, *f)
	}
	return iovecs, nil
}

func toSingleFakeIovec(actual []syscall.Iovec) (*fakeIovec, error) {
	if len(actual) != 2 {
		return nil, fmt.Errorf("cannot convert len([]syscall.Iovec) = %d to fakeIovec", len(actual))
	}
	first := actual[0]
	n := make([]byte, first.Len)
	for i := uint64(0); i < first.Len; i++ {
		b := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(first.Base)) + uintptr(i)))
		n[i] = b
	}
	second := actual[1]
	var v []byte
	if second.Len > 0 {
		v = make([]byte, second.Len)
		for i := uint64(0); i < second.Len; i++ {
			b := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(second.Base)) + uintptr(i)))
			v[i] = b
		}
	}
	return &fakeIovec{
		name: string(n),
		val:  v,
	}, nil
}
