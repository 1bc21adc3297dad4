package decoders

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"ble-adparser/advdata"
)

// AppleCompanyID is the company identifier iBeacon frames are sent under.
const AppleCompanyID = 0x004C

const (
	ibeaconType = 0x02
	ibeaconLen  = 0x15

	// manufacturer data after the company identifier
	ibeaconFrameLen = 2 + ibeaconLen
)

// IBeacon decodes an iBeacon frame: proximity UUID, major, minor and the
// measured power at 1 m.
func IBeacon(in Input) (map[string]any, error) {
	for _, s := range in.Packet.GetAll(advdata.TypeManufacturerData) {
		md := advdata.DecodeManufacturerData(s.Value)
		if md.CompanyID != AppleCompanyID || len(md.Data) != ibeaconFrameLen ||
			md.Data[0] != ibeaconType || md.Data[1] != ibeaconLen {
			continue
		}
		u, err := uuid.FromBytes(md.Data[2:18])
		if err != nil {
			return nil, errors.Wrap(err, "ibeacon uuid")
		}
		out := header("ibeacon", in)
		out["uuid"] = u.String()
		out["major"] = int(binary.BigEndian.Uint16(md.Data[18:]))
		out["minor"] = int(binary.BigEndian.Uint16(md.Data[20:]))
		out["measured_power"] = int(int8(md.Data[22]))
		log.Debugf("DEC iBeacon uuid=%s major=%v minor=%v", u, out["major"], out["minor"])
		return out, nil
	}
	return nil, errors.Wrap(ErrNoFrame, "no iBeacon manufacturer data")
}

// IBeaconPacket returns the advertising data of an iBeacon.
func IBeaconPacket(u uuid.UUID, major, minor uint16, pwr int8) advdata.Packet {
	md := make([]byte, ibeaconFrameLen)
	md[0] = ibeaconType
	md[1] = ibeaconLen
	copy(md[2:], u[:])
	binary.BigEndian.PutUint16(md[18:], major)
	binary.BigEndian.PutUint16(md[20:], minor)
	md[22] = uint8(pwr)
	return advdata.Packet{}.
		AppendFlags(advdata.FlagGeneralDiscoverable | advdata.FlagBREDRNotSupported).
		AppendManufacturerData(AppleCompanyID, md)
}
