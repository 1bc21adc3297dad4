package advdata

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Structure is one length-prefixed AD structure:
//
//	[Length][Type][Value...]
//
// Length counts the type byte and the value. A Structure framed from
// truncated data keeps the declared Length and a shorter Value.
type Structure struct {
	Length int
	Type   Type
	Value  []byte
}

// NewStructure returns a structure of type t whose Length matches v.
func NewStructure(t Type, v []byte) Structure {
	return Structure{Length: 1 + len(v), Type: t, Value: clone(v)}
}

// Decoded decodes the value according to the structure's type. See Decode.
func (s Structure) Decoded() (Value, error) {
	return Decode(s.Type, s.Value)
}

// TypeName returns the assigned name of the structure's type.
func (s Structure) TypeName() (string, bool) {
	return s.Type.Name()
}

// Truncated reports whether the declared length disagrees with the value.
// Such a structure does not re-encode to the bytes it was framed from.
func (s Structure) Truncated() bool {
	return s.Length != 1+len(s.Value)
}

// Equal reports whether s and o have the same fields.
func (s Structure) Equal(o Structure) bool {
	return s.Length == o.Length && s.Type == o.Type && bytes.Equal(s.Value, o.Value)
}

// AppendBinary appends the wire form of s to b. Length is written as given.
func (s Structure) AppendBinary(b []byte) ([]byte, error) {
	if s.Length < 0 || s.Length > 0xFF {
		return b, errors.Wrapf(ErrInvalidArgument, "length %d does not fit in one byte", s.Length)
	}
	if s.Type < 0 || s.Type > 0xFF {
		return b, errors.Wrapf(ErrInvalidArgument, "ad type %d does not fit in one byte", int(s.Type))
	}
	b = append(b, byte(s.Length), byte(s.Type))
	return append(b, s.Value...), nil
}

// MarshalBinary returns the wire form of s.
func (s Structure) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, 2+len(s.Value)))
}

type structureJSON struct {
	Length      int     `json:"length"`
	Type        Type    `json:"ad_type"`
	Value       []byte  `json:"value"`
	Decoded     Value   `json:"decoded"`
	DecodeError string  `json:"decode_error,omitempty"`
	TypeName    *string `json:"ad_type_name"`
}

// MarshalJSON writes the stored fields with the value in base64, plus the
// derived decoded value and type name. A payload that fails to decode is
// reported in decode_error rather than failing the whole document.
func (s Structure) MarshalJSON() ([]byte, error) {
	out := structureJSON{Length: s.Length, Type: s.Type, Value: s.Value}
	if out.Value == nil {
		out.Value = []byte{}
	}
	if name, ok := s.TypeName(); ok {
		out.TypeName = &name
	}
	v, err := s.Decoded()
	if err != nil {
		out.DecodeError = err.Error()
	} else {
		out.Decoded = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the stored fields. Derived fields are ignored. A value
// that is not valid base64 fails with ErrDecode.
func (s *Structure) UnmarshalJSON(b []byte) error {
	var in struct {
		Length int    `json:"length"`
		Type   Type   `json:"ad_type"`
		Value  []byte `json:"value"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return errors.Wrapf(ErrDecode, "ad structure: %v", err)
	}
	if in.Value == nil {
		in.Value = []byte{}
	}
	*s = Structure{Length: in.Length, Type: in.Type, Value: in.Value}
	return nil
}
