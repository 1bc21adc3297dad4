package advdata

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/pkg/errors"

	"ble-adparser/bleuuid"
	"ble-adparser/registry"
)

var (
	// ErrInvalidArgument reports a caller error such as an unsupported UUID
	// width or a field that does not fit in one byte.
	ErrInvalidArgument = bleuuid.ErrInvalidArgument
	// ErrDecode reports a payload that violates the format of its AD type.
	ErrDecode = errors.New("decode error")
	// ErrTruncated reports a structure whose declared length runs past the end of the data.
	ErrTruncated = errors.New("truncated structure")
)

// Value is a decoded AD structure payload. It is one of Flags, UUIDList,
// ServiceData, ManufacturerData or Text.
type Value interface {
	isValue()
}

// UUIDList is a list of service UUIDs in canonical 128-bit string form.
type UUIDList []string

// Text is a UTF-8 string payload such as a local name.
type Text string

// ServiceData is the payload of a Service Data structure.
type ServiceData struct {
	UUID string `json:"uuid"`
	Data []byte `json:"data"`
}

// ManufacturerData is the payload of a Manufacturer Specific Data structure.
type ManufacturerData struct {
	CompanyID uint16 `json:"company_identifier"`
	Data      []byte `json:"data"`
}

func (Flags) isValue()            {}
func (UUIDList) isValue()         {}
func (Text) isValue()             {}
func (ServiceData) isValue()      {}
func (ManufacturerData) isValue() {}

// CompanyName resolves the company identifier in the default registry.
func (m ManufacturerData) CompanyName() (string, bool) {
	return m.CompanyNameIn(registry.Default().Load())
}

// CompanyNameIn resolves the company identifier in s.
func (m ManufacturerData) CompanyNameIn(s *registry.Snapshot) (string, bool) {
	return s.CompanyName(int(m.CompanyID))
}

type manufacturerDataJSON struct {
	CompanyID   uint16  `json:"company_identifier"`
	Data        []byte  `json:"data"`
	CompanyName *string `json:"company_name"`
}

// MarshalJSON adds the derived company name.
func (m ManufacturerData) MarshalJSON() ([]byte, error) {
	out := manufacturerDataJSON{CompanyID: m.CompanyID, Data: m.Data}
	if name, ok := m.CompanyName(); ok {
		out.CompanyName = &name
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the form written by MarshalJSON. The company name is
// derived, so it is ignored.
func (m *ManufacturerData) UnmarshalJSON(b []byte) error {
	var in manufacturerDataJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return errors.Wrapf(ErrDecode, "manufacturer data: %v", err)
	}
	m.CompanyID, m.Data = in.CompanyID, in.Data
	return nil
}

// UnmarshalJSON decodes base64 service data.
func (s *ServiceData) UnmarshalJSON(b []byte) error {
	type plain ServiceData
	var in plain
	if err := json.Unmarshal(b, &in); err != nil {
		return errors.Wrapf(ErrDecode, "service data: %v", err)
	}
	*s = ServiceData(in)
	return nil
}

type decoder func(t Type, v []byte) (Value, error)

// decoders maps each decodable AD type to its decoder. Types not listed have
// no decoded form.
var decoders = map[Type]decoder{
	TypeFlags:                   func(_ Type, v []byte) (Value, error) { return DecodeFlags(v), nil },
	TypeIncomplete16BitUUIDs:    decodeUUIDListValue,
	TypeComplete16BitUUIDs:      decodeUUIDListValue,
	TypeIncomplete32BitUUIDs:    decodeUUIDListValue,
	TypeComplete32BitUUIDs:      decodeUUIDListValue,
	TypeIncomplete128BitUUIDs:   decodeUUIDListValue,
	TypeComplete128BitUUIDs:     decodeUUIDListValue,
	TypeSolicitation16BitUUIDs:  decodeUUIDListValue,
	TypeSolicitation32BitUUIDs:  decodeUUIDListValue,
	TypeSolicitation128BitUUIDs: decodeUUIDListValue,
	TypeServiceData16BitUUID:    decodeServiceDataValue,
	TypeServiceData32BitUUID:    decodeServiceDataValue,
	TypeServiceData128BitUUID:   decodeServiceDataValue,
	TypeManufacturerData:        func(_ Type, v []byte) (Value, error) { return DecodeManufacturerData(v), nil },
	TypeShortenedLocalName:      decodeTextValue,
	TypeCompleteLocalName:       decodeTextValue,
	TypeURI:                     decodeTextValue,
}

// uuidListTypes gives the element width in bits of each UUID list type.
var uuidListTypes = []struct {
	t    Type
	bits int
}{
	{TypeIncomplete16BitUUIDs, 16},
	{TypeComplete16BitUUIDs, 16},
	{TypeIncomplete32BitUUIDs, 32},
	{TypeComplete32BitUUIDs, 32},
	{TypeIncomplete128BitUUIDs, 128},
	{TypeComplete128BitUUIDs, 128},
	{TypeSolicitation16BitUUIDs, 16},
	{TypeSolicitation32BitUUIDs, 32},
	{TypeSolicitation128BitUUIDs, 128},
}

var serviceDataTypes = []struct {
	t    Type
	bits int
}{
	{TypeServiceData16BitUUID, 16},
	{TypeServiceData32BitUUID, 32},
	{TypeServiceData128BitUUID, 128},
}

func uuidListBits(t Type) int {
	for _, l := range uuidListTypes {
		if l.t == t {
			return l.bits
		}
	}
	return 0
}

func serviceDataBits(t Type) int {
	for _, l := range serviceDataTypes {
		if l.t == t {
			return l.bits
		}
	}
	return 0
}

// Decode decodes the payload v of an AD structure of type t. It returns a nil
// Value and no error for types that have no decoded form, including unknown
// codes. Only a malformed payload of a decodable type is an error.
func Decode(t Type, v []byte) (Value, error) {
	d, ok := decoders[t]
	if !ok {
		return nil, nil
	}
	return d(t, v)
}

// DecodeFlags reads a Flags payload.
func DecodeFlags(v []byte) Flags {
	return decodeFlags(v)
}

// DecodeUUIDList splits v into little-endian UUIDs of the width that t
// declares. A trailing partial UUID is dropped.
func DecodeUUIDList(t Type, v []byte) (UUIDList, error) {
	bits := uuidListBits(t)
	if bits == 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s is not a UUID list", t)
	}
	w := bits / 8
	uuids := make(UUIDList, 0, len(v)/w)
	for ; len(v) >= w; v = v[w:] {
		u, err := bleuuid.Expand(bleuuid.FromLittleEndian(v[:w]), bits)
		if err != nil {
			return nil, err
		}
		uuids = append(uuids, u.String())
	}
	return uuids, nil
}

// DecodeServiceData splits v into the service UUID of the width t declares
// and the remaining data. A value shorter than the UUID yields the UUID of
// the bytes present and no data.
func DecodeServiceData(t Type, v []byte) (ServiceData, error) {
	bits := serviceDataBits(t)
	if bits == 0 {
		return ServiceData{}, errors.Wrapf(ErrInvalidArgument, "%s is not service data", t)
	}
	w := min(bits/8, len(v))
	u, err := bleuuid.Expand(bleuuid.FromLittleEndian(v[:w]), bits)
	if err != nil {
		return ServiceData{}, err
	}
	return ServiceData{UUID: u.String(), Data: clone(v[w:])}, nil
}

// DecodeManufacturerData splits v into the little-endian company identifier
// and the remaining data.
func DecodeManufacturerData(v []byte) ManufacturerData {
	w := min(2, len(v))
	return ManufacturerData{
		CompanyID: uint16(bleuuid.FromLittleEndian(v[:w]).Lo),
		Data:      clone(v[w:]),
	}
}

// DecodeText reads v as UTF-8.
func DecodeText(v []byte) (Text, error) {
	if !utf8.Valid(v) {
		return "", errors.Wrapf(ErrDecode, "invalid UTF-8 % x", v)
	}
	return Text(v), nil
}

func decodeUUIDListValue(t Type, v []byte) (Value, error) {
	l, err := DecodeUUIDList(t, v)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func decodeServiceDataValue(t Type, v []byte) (Value, error) {
	sd, err := DecodeServiceData(t, v)
	if err != nil {
		return nil, err
	}
	return sd, nil
}

func decodeTextValue(_ Type, v []byte) (Value, error) {
	s, err := DecodeText(v)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func clone(b []byte) []byte {
	return append([]byte{}, b...)
}
