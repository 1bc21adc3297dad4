package decoders

import (
	"fmt"

	"github.com/pkg/errors"

	"ble-adparser/bleuuid"
)

// H4ProService is the 16-bit service UUID under which MOKO H4 Pro sensors
// send their frames.
const H4ProService = 0xFEAB

// H4 Pro frame types, the first byte of the service data.
const (
	H4ProFrameTH   byte = 0x70
	H4ProFrameInfo byte = 0x40
)

// H4Pro decodes the temperature and humidity (0x70) and device info (0x40)
// frames of a MOKO H4 Pro sensor.
func H4Pro(in Input) (map[string]any, error) {
	svc := bleuuid.From16(H4ProService)
	for _, sd := range in.Packet.ServiceData() {
		if sd.UUID != svc.String() {
			continue
		}
		if len(sd.Data) == 0 {
			return nil, errors.Wrap(ErrNoFrame, "H4 Pro service data without frame type")
		}
		return ParseH4Pro(sd.Data[0], sd.Data[1:], in)
	}
	return nil, errors.Wrapf(ErrNoFrame, "no service data for %04X", H4ProService)
}

// ParseH4Pro decodes the body p of an H4 Pro frame of the given type.
func ParseH4Pro(frameType byte, p []byte, in Input) (map[string]any, error) {
	var out map[string]any
	switch frameType {
	case H4ProFrameTH:
		log.Debugf("DEC H4Pro frame=0x70 T&H len=%d", len(p))
		out = buildTH(p, in)
	case H4ProFrameInfo:
		log.Debugf("DEC H4Pro frame=0x40 INFO len=%d", len(p))
		out = buildInfo(p, in)
	default:
		return nil, errors.Errorf("unknown H4 Pro frame_type 0x%02X", frameType)
	}
	out["frame_type"] = fmt.Sprintf("0x%02X", frameType)
	return out, nil
}

// reader walks a frame body. Fields past the end of the body are skipped.
type reader struct {
	b   []byte
	off int
}

func (r *reader) u8() (int, bool) {
	if len(r.b) < r.off+1 {
		return 0, false
	}
	v := int(r.b[r.off])
	r.off++
	return v, true
}

func (r *reader) u16be() (int, bool) {
	if len(r.b) < r.off+2 {
		return 0, false
	}
	v := int(r.b[r.off])<<8 | int(r.b[r.off+1])
	r.off += 2
	return v, true
}

func (r *reader) i16be() (int, bool) {
	v, ok := r.u16be()
	return int(int16(v)), ok
}

func (r *reader) skip(n int) bool {
	if len(r.b) < r.off+n {
		return false
	}
	r.off += n
	return true
}

// advInterval reads the interval in 100 ms steps.
func (r *reader) advInterval(out map[string]any) {
	if steps, ok := r.u8(); ok {
		out["adv_interval_steps"] = steps
		out["adv_interval_ms"] = steps * 100
	}
}

func buildTH(p []byte, in Input) map[string]any {
	out := header("h4pro-t&h", in)
	r := &reader{b: p}
	r.skip(1) // ranging
	r.advInterval(out)
	if v, ok := r.i16be(); ok {
		out["temperature"] = float64(v) / 10.0
	}
	if v, ok := r.u16be(); ok {
		out["humidity"] = float64(v) / 10.0
	}
	if v, ok := r.u16be(); ok {
		out["batt_vol"] = v
	}
	if v, ok := r.u8(); ok {
		out["device_type"] = v
	}
	r.skip(6) // MAC, already known from the gateway
	if rem := len(p) - r.off; rem > 0 {
		log.Debugf("DEC H4Pro TH trailing_bytes=%d off=%d", rem, r.off)
	}
	return out
}

func buildInfo(p []byte, in Input) map[string]any {
	out := header("h4pro-info", in)
	r := &reader{b: p}
	r.skip(1) // ranging
	r.advInterval(out)
	if v, ok := r.u16be(); ok {
		out["batt_vol"] = v
	}
	if v, ok := r.u8(); ok {
		out["device_prop"] = v
		out["device_prop_bits"] = fmt.Sprintf("%08b", v)
	}
	if v, ok := r.u8(); ok {
		out["switch_status"] = v
		out["switch_status_bits"] = fmt.Sprintf("%08b", v)
	}
	r.skip(6)
	if v, ok := r.u16be(); ok {
		out["firmware_ver"] = fmt.Sprintf("V0.0.%d", v)
	}
	return out
}
