// Package decoders turns vendor frames carried in advertising data into the
// flat JSON documents stored in backend_message.parser_json.
package decoders

import (
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"

	"ble-adparser/advdata"
)

var log = logging.MustGetLogger("decoders")

// ErrNoFrame reports an advertisement that does not carry the frame a
// decoder expects.
var ErrNoFrame = errors.New("no vendor frame in advertisement")

// Input is one advertisement together with what the gateway and the device
// table know about its sender.
type Input struct {
	Packet     advdata.Packet
	Timestamp  int64
	MAC        string
	DeviceName string
	RSSI       *int
}

// Func decodes the vendor frame of an advertisement.
type Func func(in Input) (map[string]any, error)

var byHWType = map[string]Func{
	"h4 pro":  H4Pro,
	"ibeacon": IBeacon,
}

// Lookup returns the decoder registered for a device_hw_type. Matching
// ignores case and surrounding space.
func Lookup(hwType string) (Func, bool) {
	f, ok := byHWType[strings.ToLower(strings.TrimSpace(hwType))]
	return f, ok
}

func header(messageType string, in Input) map[string]any {
	out := map[string]any{
		"message_type": messageType,
		"timestamp":    in.Timestamp,
		"mac":          strings.ToUpper(in.MAC),
		"device_name":  in.DeviceName,
	}
	if in.RSSI != nil {
		out["rssi"] = *in.RSSI
	}
	return out
}
