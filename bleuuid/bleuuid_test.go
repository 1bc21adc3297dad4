package bleuuid

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		v    Uint128
		bits int
		want string
	}{
		{Uint128{Lo: 0xAAAA}, 16, "0000aaaa-0000-1000-8000-00805f9b34fb"},
		{Uint128{Lo: 0x180F}, 16, "0000180f-0000-1000-8000-00805f9b34fb"},
		{Uint128{Lo: 0xAAAAAAAA}, 32, "aaaaaaaa-0000-1000-8000-00805f9b34fb"},
		{Uint128{Hi: 0x0000AAAA00001000, Lo: 0x80000080AFAFAAAA}, 128, "0000aaaa-0000-1000-8000-0080afafaaaa"},
	}
	for _, tt := range tests {
		got, err := Expand(tt.v, tt.bits)
		if err != nil {
			t.Fatalf("Expand(%v, %d): %v", tt.v, tt.bits, err)
		}
		if got.String() != tt.want {
			t.Errorf("Expand(%v, %d) = %s, want %s", tt.v, tt.bits, got, tt.want)
		}
	}
}

func TestExpandInvalid(t *testing.T) {
	for _, bits := range []int{0, 8, 24, 64} {
		if _, err := Expand(Uint128{Lo: 0xAAAA}, bits); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expand(_, %d) err = %v, want ErrInvalidArgument", bits, err)
		}
	}
	if _, err := Expand(Uint128{Lo: 0x10000}, 16); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("oversized 16-bit value err = %v", err)
	}
}

func TestFromLittleEndian(t *testing.T) {
	b := make([]byte, 16)
	for i := range b {
		b[i] = byte(i)
	}
	v := FromLittleEndian(b)
	if v.Hi != 0x0f0e0d0c0b0a0908 || v.Lo != 0x0706050403020100 {
		t.Fatalf("got %#x %#x", v.Hi, v.Lo)
	}
	u, _ := Expand(v, 128)
	if u.String() != "0f0e0d0c-0b0a-0908-0706-050403020100" {
		t.Errorf("got %s", u)
	}
	if v := FromLittleEndian([]byte{0xAA}); v.Lo != 0xAA || v.Hi != 0 {
		t.Errorf("short input: %#x", v.Lo)
	}
	if v := FromLittleEndian(nil); v != (Uint128{}) {
		t.Errorf("nil input: %v", v)
	}
}

func TestWidthShort(t *testing.T) {
	custom := uuid.MustParse("34da3ad1-7110-41a1-b1ef-4430f509cde7")
	tests := []struct {
		u    uuid.UUID
		want int
	}{
		{From16(0x180F), 16},
		{From32(0x1234ABCD), 32},
		{custom, 128},
	}
	for _, tt := range tests {
		if got := Width(tt.u); got != tt.want {
			t.Errorf("Width(%s) = %d, want %d", tt.u, got, tt.want)
		}
	}

	b, err := Short(From16(0xBBAA), 16)
	if err != nil || !bytes.Equal(b, []byte{0xAA, 0xBB}) {
		t.Errorf("Short 16 = %x, %v", b, err)
	}
	b, err = Short(From32(0xDDCCBBAA), 32)
	if err != nil || !bytes.Equal(b, []byte{0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Errorf("Short 32 = %x, %v", b, err)
	}
	b, err = Short(custom, 128)
	if err != nil {
		t.Fatal(err)
	}
	back, _ := Expand(FromLittleEndian(b), 128)
	if back != custom {
		t.Errorf("128 round trip = %s", back)
	}
	if _, err := Short(custom, 16); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Short(custom, 16) err = %v", err)
	}
}
