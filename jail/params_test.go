package jail

import (
	"math"
	"net/netip"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name  string
		param string
		pt    paramType
		buf   []byte
		want  Value
		err   error
	}{{
		name:  "flag-true",
		param: "persist",
		pt:    paramType{typ: ctlTypeInt, size: 4, boolFmt: true},
		buf:   []byte{1, 0, 0, 0},
		want:  BoolValue(true),
	}, {
		name:  "flag-false",
		param: "allow.mount",
		pt:    paramType{typ: ctlTypeInt, size: 4, boolFmt: true},
		buf:   []byte{0, 0, 0, 0},
		want:  BoolValue(false),
	}, {
		name:  "int-negative",
		param: "enforce_statfs",
		pt:    paramType{typ: ctlTypeInt, size: 4},
		buf:   []byte{0xfb, 0xff, 0xff, 0xff},
		want:  IntValue(-5),
	}, {
		name:  "int-positive",
		param: "children.max",
		pt:    paramType{typ: ctlTypeInt, size: 4},
		buf:   []byte{9, 0, 0, 0},
		want:  IntValue(9),
	}, {
		name:  "uint64",
		param: "host.hostid",
		pt:    paramType{typ: ctlTypeU64, size: 8},
		buf:   []byte{1, 0, 0, 0, 0, 0, 0, 0x80},
		want:  UintValue(1 | uint64(0x80)<<56),
	}, {
		name:  "string",
		param: "host.hostname",
		pt:    paramType{typ: ctlTypeString, size: 256},
		buf:   []byte("web.example.com\x00garbage"),
		want:  StringValue("web.example.com"),
	}, {
		name:  "ip4-drops-unspecified",
		param: "ip4.addr",
		pt:    paramType{typ: ctlTypeStruct, size: 4},
		buf: []byte{
			10, 0, 0, 1,
			0, 0, 0, 0,
			192, 168, 1, 1,
		},
		want: IPv4Value(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("192.168.1.1")),
	}, {
		name:  "ip6",
		param: "ip6.addr",
		pt:    paramType{typ: ctlTypeStruct, size: 16},
		buf: append(
			netip.MustParseAddr("2001:db8::10").AsSlice(),
			make([]byte, 16)...,
		),
		want: IPv6Value(netip.MustParseAddr("2001:db8::10")),
	}, {
		name:  "struct-raw",
		param: "cpuset.mask",
		pt:    paramType{typ: ctlTypeStruct, size: 8},
		buf:   []byte{1, 2, 3, 4, 5, 6, 7, 8},
		want:  BytesValue([]byte{1, 2, 3, 4, 5, 6, 7, 8}),
	}, {
		name:  "short-buffer",
		param: "children.max",
		pt:    paramType{typ: ctlTypeInt, size: 4},
		buf:   []byte{1, 2},
		err:   ErrParamTypeMismatch,
	}, {
		name:  "node-type",
		param: "bogus",
		pt:    paramType{typ: ctlTypeNode},
		err:   ErrParamTypeMismatch,
	}}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeValue(tc.param, tc.pt, tc.buf)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncodeNumeric(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		typ   ctlType
		buf   []byte
		err   error
	}{{
		name:  "int32-negative",
		value: IntValue(-5),
		typ:   ctlTypeInt,
		buf:   []byte{0xfb, 0xff, 0xff, 0xff},
	}, {
		name:  "uint64",
		value: UintValue(math.MaxUint64),
		typ:   ctlTypeU64,
		buf:   []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}, {
		name:  "int8-fits",
		value: IntValue(-128),
		typ:   ctlTypeS8,
		buf:   []byte{0x80},
	}, {
		name:  "int8-overflow",
		value: IntValue(200),
		typ:   ctlTypeS8,
		err:   ErrParamTypeMismatch,
	}, {
		name:  "negative-into-unsigned",
		value: IntValue(-1),
		typ:   ctlTypeU32,
		err:   ErrParamTypeMismatch,
	}, {
		name:  "uint-overflows-signed",
		value: UintValue(math.MaxUint64),
		typ:   ctlTypeS64,
		err:   ErrParamTypeMismatch,
	}, {
		name:  "uint16",
		value: UintValue(0x1234),
		typ:   ctlTypeU16,
		buf:   []byte{0x34, 0x12},
	}}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.value.encodeNumeric("test", tc.typ, tc.typ.width())
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.buf, got)
		})
	}
}

func TestEncodeAddrs(t *testing.T) {
	v4 := netip.MustParseAddr("10.0.0.1")
	v6 := netip.MustParseAddr("2001:db8::10")

	buf, err := IPv4Value(v4).encodeAddrs("ip4.addr", 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 0, 0, 1}, buf)

	buf, err = IPv6Value(v6).encodeAddrs("ip6.addr", 16)
	require.NoError(t, err)
	assert.Equal(t, v6.AsSlice(), buf)

	_, err = IPv4Value(v6).encodeAddrs("ip4.addr", 4)
	assert.ErrorIs(t, err, ErrParamTypeMismatch, "wrong family")

	_, err = IPv6Value(netip.MustParseAddr("::ffff:10.0.0.1")).encodeAddrs("ip6.addr", 16)
	assert.ErrorIs(t, err, ErrParamTypeMismatch, "4-in-6 mapped address")

	_, err = IPv4Value(v4).encodeAddrs("ip4.addr", 16)
	assert.ErrorIs(t, err, ErrParamTypeMismatch, "element size mismatch")
}

func TestDecodeAddrsBadLength(t *testing.T) {
	_, err := decodeAddrs([]byte{10, 0, 0}, 4)
	assert.ErrorIs(t, err, ErrParamTypeMismatch)
}

func TestNoName(t *testing.T) {
	tests := map[string]string{
		"persist":         "nopersist",
		"allow.mount":     "allow.nomount",
		"allow.mount.zfs": "allow.mount.nozfs",
		"vnet":            "novnet",
	}
	for name, want := range tests {
		assert.Equal(t, want, noName(name), name)
	}
}

func TestValueAccessors(t *testing.T) {
	b, err := BoolValue(true).AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	// The kernel reports flags as ints; 0 and 1 unpack as bools.
	b, err = IntValue(1).AsBool()
	require.NoError(t, err)
	assert.True(t, b)
	b, err = UintValue(0).AsBool()
	require.NoError(t, err)
	assert.False(t, b)
	_, err = IntValue(2).AsBool()
	assert.ErrorIs(t, err, ErrParamTypeMismatch)
	_, err = StringValue("true").AsBool()
	assert.ErrorIs(t, err, ErrParamTypeMismatch)

	n, err := UintValue(7).AsInt()
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	_, err = UintValue(math.MaxUint64).AsInt()
	assert.ErrorIs(t, err, ErrParamTypeMismatch)

	u, err := IntValue(7).AsUint()
	require.NoError(t, err)
	assert.EqualValues(t, 7, u)
	_, err = IntValue(-1).AsUint()
	assert.ErrorIs(t, err, ErrParamTypeMismatch)

	s, err := StringValue("x").AsString()
	require.NoError(t, err)
	assert.Equal(t, "x", s)
	_, err = IntValue(1).AsString()
	assert.ErrorIs(t, err, ErrParamTypeMismatch)

	_, err = StringValue("x").AsIPv4()
	assert.ErrorIs(t, err, ErrParamTypeMismatch)
	_, err = IPv4Value().AsIPv6()
	assert.ErrorIs(t, err, ErrParamTypeMismatch)
}

func TestValueString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{BoolValue(true), "true"},
		{BoolValue(false), "false"},
		{IntValue(-5), "-5"},
		{UintValue(5), "5"},
		{StringValue("web"), "web"},
		{BytesValue([]byte{0xde, 0xad}), "dead"},
		{IPv4Value(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")), "10.0.0.1,10.0.0.2"},
		{Value{}, "<invalid>"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.value.String())
	}
}

func TestCstring(t *testing.T) {
	assert.Equal(t, "abc", cstring([]byte("abc\x00def")))
	assert.Equal(t, "abc", cstring([]byte("abc")))
	assert.Equal(t, "", cstring([]byte{0}))
	assert.Equal(t, "", cstring(nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "bool", KindBool.String())
	assert.Equal(t, "ipv6", KindIPv6.String())
	assert.Equal(t, "invalid", Kind(0).String())
}

func TestParamErrorsWrapping(t *testing.T) {
	perr := ParamErrors{
		"bogus.one": errors.Wrap(ErrParamUnknown, "bogus.one"),
		"bogus.two": errors.Wrap(ErrParamUnknown, "bogus.two"),
	}
	assert.ErrorIs(t, perr, ErrParamUnknown)
}
