package advdata

import (
	"fmt"
	"strings"
)

// Flags is the value of a Flags AD structure. Bits without a name are kept.
type Flags uint64

// Advertising flags
const (
	FlagLimitedDiscoverable Flags = 0x01 // LE Limited Discoverable Mode
	FlagGeneralDiscoverable Flags = 0x02 // LE General Discoverable Mode
	FlagBREDRNotSupported   Flags = 0x04 // BR/EDR Not Supported
	FlagBothController      Flags = 0x08 // Simultaneous LE and BR/EDR to Same Device Capable (Controller)
	FlagBothHost            Flags = 0x10 // Simultaneous LE and BR/EDR to Same Device Capable (Host)
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagLimitedDiscoverable, "LE_LIMITED_DISCOVERABLE_MODE"},
	{FlagGeneralDiscoverable, "LE_GENERAL_DISCOVERABLE_MODE"},
	{FlagBREDRNotSupported, "BR_EDR_NOT_SUPPORTED"},
	{FlagBothController, "SIMULTANEOUS_LE_AND_BR_EDR_TO_SAME_DEVICE_CAPABLE_CONTROLLER"},
	{FlagBothHost, "SIMULTANEOUS_LE_AND_BR_EDR_TO_SAME_DEVICE_CAPABLE_HOST"},
}

const flagsKnown = FlagLimitedDiscoverable | FlagGeneralDiscoverable | FlagBREDRNotSupported |
	FlagBothController | FlagBothHost

// Has reports whether every bit of g is set in f.
func (f Flags) Has(g Flags) bool {
	return f&g == g
}

// Names lists the names of the set bits, lowest bit first.
func (f Flags) Names() []string {
	var names []string
	for _, n := range flagNames {
		if f&n.f != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

// Unknown returns the set bits that have no name.
func (f Flags) Unknown() Flags {
	return f &^ flagsKnown
}

func (f Flags) String() string {
	names := f.Names()
	if u := f.Unknown(); u != 0 {
		names = append(names, fmt.Sprintf("%#x", uint64(u)))
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, "|")
}

// decodeFlags reads v as a little-endian integer. Only the low 8 bytes count.
func decodeFlags(v []byte) Flags {
	var f Flags
	for i := len(v) - 1; i >= 0; i-- {
		if i >= 8 {
			continue
		}
		f = f<<8 | Flags(v[i])
	}
	return f
}
