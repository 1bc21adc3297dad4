package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"ble-adparser/advdata"
	"ble-adparser/registry"
)

var (
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
)

// renderPacket writes one line per structure: type, length, raw value and
// the decoded form.
func renderPacket(w io.Writer, p advdata.Packet, snap *registry.Snapshot) {
	if len(p.Structures) == 0 {
		fmt.Fprintln(w, yellow("no AD structures"))
		return
	}
	for i, s := range p.Structures {
		name, ok := s.TypeName()
		if !ok {
			name = fmt.Sprintf("unknown 0x%02X", int(s.Type))
		}
		fmt.Fprintf(w, "%2d %s len=%d value=%s\n", i, cyan(name), s.Length, hex.EncodeToString(s.Value))
		if s.Truncated() {
			fmt.Fprintf(w, "   %s\n", red(fmt.Sprintf("truncated: declares %d bytes, has %d", s.Length-1, len(s.Value))))
		}
		v, err := s.Decoded()
		if err != nil {
			fmt.Fprintf(w, "   %s\n", red(err.Error()))
			continue
		}
		if v != nil {
			fmt.Fprintf(w, "   %s\n", green(describe(v, snap)))
		}
	}
}

func describe(v advdata.Value, snap *registry.Snapshot) string {
	switch v := v.(type) {
	case advdata.Flags:
		return v.String()
	case advdata.UUIDList:
		return strings.Join(v, ", ")
	case advdata.Text:
		return fmt.Sprintf("%q", string(v))
	case advdata.ServiceData:
		return fmt.Sprintf("%s data=%s", v.UUID, hex.EncodeToString(v.Data))
	case advdata.ManufacturerData:
		company := "unknown company"
		if name, ok := v.CompanyNameIn(snap); ok {
			company = name
		}
		return fmt.Sprintf("0x%04X (%s) data=%s", v.CompanyID, company, hex.EncodeToString(v.Data))
	}
	return fmt.Sprint(v)
}
