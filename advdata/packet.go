package advdata

import (
	"encoding/hex"
	"encoding/json"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MaxLegacyLength is the maximum length of legacy advertising and scan
// response data.
const MaxLegacyLength = 31

// Structures frames b into AD structures. Framing stops at the end of b or at
// a zero length byte; anything after a zero length byte is ignored. A length
// that runs past the end of b yields a structure with a shorter value
// (see Structure.Truncated), and a lone trailing length byte ends framing.
// Framing never fails. The sequence can be iterated any number of times.
func Structures(b []byte) iter.Seq[Structure] {
	return func(yield func(Structure) bool) {
		for off := 0; off < len(b); {
			l := int(b[off])
			if l == 0 || off+1 >= len(b) {
				return
			}
			start := off + 2
			end := min(off+1+l, len(b))
			s := Structure{Length: l, Type: Type(b[off+1]), Value: clone(b[start:end])}
			if !yield(s) {
				return
			}
			off += l + 1
		}
	}
}

// Packet is the advertising data of one PDU: AD structures in wire order.
type Packet struct {
	Structures []Structure `json:"ad_structs"`
}

// Parse frames b into a Packet. See Structures.
func Parse(b []byte) Packet {
	var p Packet
	for s := range Structures(b) {
		p.Structures = append(p.Structures, s)
	}
	return p
}

// ParseHex frames a hex-encoded payload, as sent by gateways.
func ParseHex(s string) (Packet, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Packet{}, errors.Wrapf(ErrDecode, "hex payload: %v", err)
	}
	return Parse(b), nil
}

// Validate reports the first structure whose declared length disagrees with
// its value, wrapping ErrTruncated.
func (p Packet) Validate() error {
	for i, s := range p.Structures {
		if s.Truncated() {
			return errors.Wrapf(ErrTruncated, "structure %d (%s) declares %d bytes, has %d",
				i, s.Type, s.Length-1, len(s.Value))
		}
	}
	return nil
}

// Get returns the first structure of type t.
func (p Packet) Get(t Type) (Structure, bool) {
	for _, s := range p.Structures {
		if s.Type == t {
			return s, true
		}
	}
	return Structure{}, false
}

// GetAll returns every structure of type t in wire order.
func (p Packet) GetAll(t Type) []Structure {
	var all []Structure
	for _, s := range p.Structures {
		if s.Type == t {
			all = append(all, s)
		}
	}
	return all
}

// UUIDs returns the service UUIDs the packet mentions: those of every UUID
// list structure in wire order, then those of every service data structure
// in wire order. Lists are not grouped by type, so a complete list sent
// after an incomplete one is reported after it.
func (p Packet) UUIDs() []uuid.UUID {
	var uuids []uuid.UUID
	for _, s := range p.Structures {
		bits := uuidListBits(s.Type)
		if bits == 0 {
			continue
		}
		l, _ := DecodeUUIDList(s.Type, s.Value)
		for _, u := range l {
			uuids = append(uuids, uuid.MustParse(u))
		}
	}
	for _, sd := range p.ServiceData() {
		uuids = append(uuids, uuid.MustParse(sd.UUID))
	}
	return uuids
}

// ServiceData returns the decoded service data structures in wire order.
func (p Packet) ServiceData() []ServiceData {
	var sds []ServiceData
	for _, s := range p.Structures {
		if serviceDataBits(s.Type) == 0 {
			continue
		}
		sd, _ := DecodeServiceData(s.Type, s.Value)
		sds = append(sds, sd)
	}
	return sds
}

// ManufacturerData returns the first manufacturer specific data structure.
func (p Packet) ManufacturerData() (ManufacturerData, bool) {
	s, ok := p.Get(TypeManufacturerData)
	if !ok {
		return ManufacturerData{}, false
	}
	return DecodeManufacturerData(s.Value), true
}

// ManufacturerID returns the company identifier of the first manufacturer
// specific data structure.
func (p Packet) ManufacturerID() (uint16, bool) {
	md, ok := p.ManufacturerData()
	return md.CompanyID, ok
}

// Name returns the complete local name, or else the shortened local name.
// ok is false when the packet carries neither. A name that is not valid
// UTF-8 fails with ErrDecode.
func (p Packet) Name() (name string, ok bool, err error) {
	s, ok := p.Get(TypeCompleteLocalName)
	if !ok {
		s, ok = p.Get(TypeShortenedLocalName)
	}
	if !ok {
		return "", false, nil
	}
	t, err := DecodeText(s.Value)
	if err != nil {
		return "", true, err
	}
	return string(t), true, nil
}

// Flags returns the value of the first Flags structure.
func (p Packet) Flags() (Flags, bool) {
	s, ok := p.Get(TypeFlags)
	if !ok {
		return 0, false
	}
	return DecodeFlags(s.Value), true
}

// TxPower returns the advertised transmit power level in dBm.
func (p Packet) TxPower() (int, bool) {
	s, ok := p.Get(TypeTxPowerLevel)
	if !ok || len(s.Value) < 1 {
		return 0, false
	}
	return int(int8(s.Value[0])), true
}

// Equal reports whether p and o hold equal structures in the same order.
func (p Packet) Equal(o Packet) bool {
	if len(p.Structures) != len(o.Structures) {
		return false
	}
	for i := range p.Structures {
		if !p.Structures[i].Equal(o.Structures[i]) {
			return false
		}
	}
	return true
}

// Len returns the encoded length of p.
func (p Packet) Len() int {
	n := 0
	for _, s := range p.Structures {
		n += 2 + len(s.Value)
	}
	return n
}

// Fits reports whether p fits in legacy advertising data.
func (p Packet) Fits() bool {
	return p.Len() <= MaxLegacyLength
}

// MarshalBinary concatenates the wire form of every structure. For a packet
// whose structures are not truncated this is the inverse of Parse.
func (p Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, p.Len())
	for i, s := range p.Structures {
		var err error
		if b, err = s.AppendBinary(b); err != nil {
			return nil, errors.Wrapf(err, "structure %d", i)
		}
	}
	return b, nil
}

// UnmarshalBinary replaces p with the structures framed from b.
func (p *Packet) UnmarshalBinary(b []byte) error {
	*p = Parse(b)
	return nil
}

// MarshalJSON writes {"ad_structs": [...]}, never null.
func (p Packet) MarshalJSON() ([]byte, error) {
	type plain Packet
	out := plain(p)
	if out.Structures == nil {
		out.Structures = []Structure{}
	}
	return json.Marshal(out)
}
