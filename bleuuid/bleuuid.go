// Package bleuuid expands Bluetooth short-form UUIDs onto the SIG base UUID.
package bleuuid

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Base is the Bluetooth SIG base UUID that 16 and 32-bit UUIDs are overlaid on.
var Base = uuid.MustParse("00000000-0000-1000-8000-00805F9B34FB")

// ErrInvalidArgument is returned for unsupported widths and out of range values.
var ErrInvalidArgument = errors.New("invalid argument")

// Uint128 is an unsigned 128-bit integer.
type Uint128 struct {
	Hi, Lo uint64
}

// FromLittleEndian reads up to 16 bytes as a little-endian unsigned integer.
// Fewer bytes give a smaller value; bytes beyond the 16th are ignored.
func FromLittleEndian(b []byte) Uint128 {
	if len(b) > 16 {
		b = b[:16]
	}
	var v Uint128
	for i := len(b) - 1; i >= 0; i-- {
		v.Hi = v.Hi<<8 | v.Lo>>56
		v.Lo = v.Lo<<8 | uint64(b[i])
	}
	return v
}

// Expand maps a short value of the given bit width to its 128-bit UUID.
// 16 and 32-bit values are overlaid on Base; a 128-bit value is the UUID itself.
func Expand(v Uint128, bits int) (uuid.UUID, error) {
	u := Base
	switch bits {
	case 16:
		if v.Hi != 0 || v.Lo > 0xFFFF {
			return uuid.Nil, errors.Wrapf(ErrInvalidArgument, "value %#x does not fit in 16 bits", v.Lo)
		}
		binary.BigEndian.PutUint16(u[2:4], uint16(v.Lo))
	case 32:
		if v.Hi != 0 || v.Lo > 0xFFFFFFFF {
			return uuid.Nil, errors.Wrapf(ErrInvalidArgument, "value %#x does not fit in 32 bits", v.Lo)
		}
		binary.BigEndian.PutUint32(u[0:4], uint32(v.Lo))
	case 128:
		binary.BigEndian.PutUint64(u[0:8], v.Hi)
		binary.BigEndian.PutUint64(u[8:16], v.Lo)
	default:
		return uuid.Nil, errors.Wrapf(ErrInvalidArgument, "bit length %d: must be 16, 32, or 128", bits)
	}
	return u, nil
}

// From16 expands a 16-bit UUID such as 0x180F.
func From16(v uint16) uuid.UUID {
	u, _ := Expand(Uint128{Lo: uint64(v)}, 16)
	return u
}

// From32 expands a 32-bit UUID.
func From32(v uint32) uuid.UUID {
	u, _ := Expand(Uint128{Lo: uint64(v)}, 32)
	return u
}

// Width returns the narrowest width (16, 32 or 128) that u can be advertised with.
func Width(u uuid.UUID) int {
	for i := 4; i < 16; i++ {
		if u[i] != Base[i] {
			return 128
		}
	}
	if u[0] == 0 && u[1] == 0 {
		return 16
	}
	return 32
}

// Short returns u in its little-endian on-air form for the given width.
// It fails if u is not on the base UUID and bits is 16 or 32.
func Short(u uuid.UUID, bits int) ([]byte, error) {
	w := Width(u)
	switch {
	case bits == 128:
		b := make([]byte, 16)
		for i := range b {
			b[i] = u[15-i]
		}
		return b, nil
	case bits == 32 && w <= 32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, binary.BigEndian.Uint32(u[0:4]))
		return b, nil
	case bits == 16 && w == 16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, binary.BigEndian.Uint16(u[2:4]))
		return b, nil
	}
	return nil, errors.Wrapf(ErrInvalidArgument, "uuid %s cannot be shortened to %d bits", u, bits)
}
