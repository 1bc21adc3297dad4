package advdata

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"ble-adparser/bleuuid"
)

// Append returns p with a structure of type t and value v appended.
func (p Packet) Append(t Type, v []byte) Packet {
	structures := make([]Structure, len(p.Structures), len(p.Structures)+1)
	copy(structures, p.Structures)
	return Packet{Structures: append(structures, NewStructure(t, v))}
}

// AppendFlags appends a Flags structure.
func (p Packet) AppendFlags(f Flags) Packet {
	return p.Append(TypeFlags, []byte{byte(f)})
}

// AppendCompleteName appends a Complete Local Name structure.
func (p Packet) AppendCompleteName(n string) Packet {
	return p.Append(TypeCompleteLocalName, []byte(n))
}

// AppendShortName appends a Shortened Local Name structure.
func (p Packet) AppendShortName(n string) Packet {
	return p.Append(TypeShortenedLocalName, []byte(n))
}

// AppendTxPower appends a Tx Power Level structure.
func (p Packet) AppendTxPower(dBm int8) Packet {
	return p.Append(TypeTxPowerLevel, []byte{byte(dBm)})
}

// AppendManufacturerData appends a manufacturer specific data structure.
func (p Packet) AppendManufacturerData(id uint16, b []byte) Packet {
	d := binary.LittleEndian.AppendUint16(make([]byte, 0, 2+len(b)), id)
	return p.Append(TypeManufacturerData, append(d, b...))
}

// AppendUUIDs appends a complete or incomplete service UUID list. Each UUID
// goes into the list of the narrowest width that represents it, so up to
// three structures are appended, 16-bit first.
func (p Packet) AppendUUIDs(complete bool, uu ...uuid.UUID) Packet {
	lists := map[int][]byte{}
	for _, u := range uu {
		w := bleuuid.Width(u)
		b, _ := bleuuid.Short(u, w)
		lists[w] = append(lists[w], b...)
	}
	for _, l := range []struct {
		bits                 int
		complete, incomplete Type
	}{
		{16, TypeComplete16BitUUIDs, TypeIncomplete16BitUUIDs},
		{32, TypeComplete32BitUUIDs, TypeIncomplete32BitUUIDs},
		{128, TypeComplete128BitUUIDs, TypeIncomplete128BitUUIDs},
	} {
		b, ok := lists[l.bits]
		if !ok {
			continue
		}
		t := l.incomplete
		if complete {
			t = l.complete
		}
		p = p.Append(t, b)
	}
	return p
}

// AppendServiceData appends a service data structure using the narrowest
// UUID width that represents u.
func (p Packet) AppendServiceData(u uuid.UUID, data []byte) (Packet, error) {
	w := bleuuid.Width(u)
	b, err := bleuuid.Short(u, w)
	if err != nil {
		return p, err
	}
	var t Type
	for _, l := range serviceDataTypes {
		if l.bits == w {
			t = l.t
		}
	}
	if t == 0 {
		return p, errors.Wrapf(ErrInvalidArgument, "no service data type for %d-bit uuid", w)
	}
	return p.Append(t, append(b, data...)), nil
}
