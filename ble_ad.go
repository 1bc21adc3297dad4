package main

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ble-adparser/advdata"
	"ble-adparser/bleuuid"
	"ble-adparser/registry"
)

// logStructures writes one debug line per AD structure.
func logStructures(trace string, p advdata.Packet) {
	for i, s := range p.Structures {
		if s.Truncated() {
			log.Debugf("MSG %s AD %d len=%d type=0x%02X truncated value=%d", trace, i, s.Length, int(s.Type), len(s.Value))
			continue
		}
		log.Debugf("MSG %s AD %d len=%d type=0x%02X", trace, i, s.Length, int(s.Type))
	}
}

// adSummary collects the fields of an advertisement that callers query most,
// annotated with registry names from snap.
func adSummary(p advdata.Packet, snap *registry.Snapshot) map[string]any {
	out := map[string]any{}
	if f, ok := p.Flags(); ok {
		out["flags"] = f.Names()
	}
	if name, ok, err := p.Name(); ok && err == nil {
		out["local_name"] = name
	}
	if pw, ok := p.TxPower(); ok {
		out["tx_power"] = pw
	}
	if md, ok := p.ManufacturerData(); ok {
		out["company_id"] = fmt.Sprintf("0x%04X", md.CompanyID)
		if name, ok := md.CompanyNameIn(snap); ok {
			out["company_name"] = name
		}
	}

	var services []map[string]any
	for _, u := range p.UUIDs() {
		svc := map[string]any{"uuid": u.String()}
		if bleuuid.Width(u) == 16 {
			if a, ok := snap.UUID(int(binary.BigEndian.Uint16(u[2:4]))); ok {
				svc["name"] = a.Name
			}
		}
		services = append(services, svc)
	}
	if len(services) > 0 {
		out["services"] = services
	}
	return out
}

// serviceUUIDText returns the short uppercase form of the first service data
// UUID, "FEAB" style, or the full UUID when it is not on the base.
func serviceUUIDText(p advdata.Packet) string {
	sds := p.ServiceData()
	if len(sds) == 0 {
		return ""
	}
	u, err := uuid.Parse(sds[0].UUID)
	if err != nil {
		return ""
	}
	if bleuuid.Width(u) == 16 {
		return fmt.Sprintf("%04X", binary.BigEndian.Uint16(u[2:4]))
	}
	return strings.ToUpper(u.String())
}
