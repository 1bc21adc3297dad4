package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"ble-adparser/advdata"
	"ble-adparser/decoders"
	"ble-adparser/registry"
)

type MQTTMessage struct {
	MessageID  int64  `json:"message_id"`
	GatewayMAC string `json:"gateway_mac"`
	GatewayHW  string `json:"gateway_hw"`
	DeviceMAC  string `json:"device_mac"`
	Payload    string `json:"payload"`
	QoS        int    `json:"qos"`
	Timestamp  int64  `json:"timestamp"`
	RSSI       *int   `json:"rssi,omitempty"`
}

// Result is the reply to an accepted gateway message.
type Result struct {
	Status     string `json:"status"`
	MessageID  int64  `json:"message_id"`
	DeviceHW   string `json:"device_hw_type"`
	FrameType  string `json:"frame_type,omitempty"`
	Structures int    `json:"ad_structs"`
	Ms         int64  `json:"ms"`
}

// rejectError is a message the pipeline refuses. It maps to 400.
type rejectError struct {
	msg string
}

func (e *rejectError) Error() string { return e.msg }

func reject(format string, args ...any) error {
	return &rejectError{msg: fmt.Sprintf(format, args...)}
}

// Server runs gateway messages through framing, vendor decoding, storage
// and callbacks.
type Server struct {
	store    Store
	pub      Publisher
	registry *registry.Registry
	packets  *lru.Cache
	preview  int
}

// NewServer returns a Server. pub may be nil, in which case callbacks are
// skipped.
func NewServer(store Store, pub Publisher, reg *registry.Registry, cacheSize, preview int) (*Server, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "decode cache")
	}
	return &Server{store: store, pub: pub, registry: reg, packets: cache, preview: preview}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("parser ok"))
	})
	mux.HandleFunc("/message", s.handleMessage)
	mux.HandleFunc("/decode", s.handleDecode)
	mux.HandleFunc("GET /registry/companies/{id}", s.handleCompany)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("parser"))
	})
	return mux
}

// packet frames a hex payload, reusing the result for payloads seen recently.
func (s *Server) packet(payload string) (advdata.Packet, error) {
	key := strings.ToLower(payload)
	if v, ok := s.packets.Get(key); ok {
		return v.(advdata.Packet), nil
	}
	p, err := advdata.ParseHex(key)
	if err != nil {
		return advdata.Packet{}, err
	}
	s.packets.Add(key, p)
	return p, nil
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	trace := genTraceID()

	if r.Method != http.MethodPost {
		http.Error(w, "only POST", http.StatusMethodNotAllowed)
		return
	}

	var in MQTTMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.Warningf("MSG %s decode error: %v", trace, err)
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.Process(r.Context(), trace, in)
	if err != nil {
		var rej *rejectError
		if errors.As(err, &rej) {
			http.Error(w, rej.msg, http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

// Process handles one gateway message. Errors from messages the pipeline
// refuses are *rejectError; anything else is a failure on our side.
func (s *Server) Process(ctx context.Context, trace string, in MQTTMessage) (*Result, error) {
	start := time.Now()

	normalize(&in)
	log.Infof("MSG %s recv msg_id=%d gw_mac=%s gw_hw=%s dev_mac=%s qos=%d ts=%d rssi=%v",
		trace, in.MessageID, in.GatewayMAC, in.GatewayHW, in.DeviceMAC, in.QoS, in.Timestamp, ptrIntStr(in.RSSI))

	if err := validate(&in); err != nil {
		log.Warningf("MSG %s validation error: %v", trace, err)
		return nil, reject("validation: %v", err)
	}
	log.Debugf("MSG %s payload.len=%d preview=%q", trace, len(in.Payload), head(in.Payload, s.preview))

	p, err := s.packet(in.Payload)
	if err != nil {
		log.Warningf("MSG %s invalid hex payload: %v", trace, err)
		return nil, reject("payload must be hex: %v", err)
	}
	logStructures(trace, p)
	if err := p.Validate(); err != nil {
		// gateways cut long scan responses; the framed prefix is kept
		log.Noticef("MSG %s %v", trace, err)
	}

	if in.GatewayMAC != "" {
		gw, err := s.store.Gateway(ctx, in.GatewayMAC)
		if err != nil {
			log.Infof("MSG %s gateway lookup gw_mac=%s: %v", trace, in.GatewayMAC, err)
		} else {
			log.Debugf("MSG %s gateway ok name=%q hw=%q client_id=%q", trace, gw.Name, gw.HWType, gw.ClientID)
		}
	}

	dev, err := s.store.Device(ctx, in.DeviceMAC)
	if errors.Is(err, errNotFound) || (err == nil && dev.HWType == "") {
		log.Warningf("MSG %s device not found dev_mac=%s", trace, in.DeviceMAC)
		return nil, reject("unknown device_hw_type; device not found")
	}
	if err != nil {
		log.Errorf("MSG %s device lookup: %s", trace, describeDBError(err))
		return nil, errors.Wrap(err, "device lookup")
	}
	log.Debugf("MSG %s device ok name=%q hw=%q", trace, dev.Name, dev.HWType)

	decode, ok := decoders.Lookup(dev.HWType)
	if !ok {
		log.Warningf("MSG %s no parser for device_hw_type=%q", trace, dev.HWType)
		return nil, reject("no parser for device_hw_type=%q", dev.HWType)
	}
	out, err := decode(decoders.Input{
		Packet:     p,
		Timestamp:  in.Timestamp,
		MAC:        in.DeviceMAC,
		DeviceName: dev.Name,
		RSSI:       in.RSSI,
	})
	if err != nil {
		log.Warningf("MSG %s parse error: %v", trace, err)
		return nil, reject("parse error: %v", err)
	}
	snap := s.registry.Load()
	out["advertisement"] = adSummary(p, snap)
	log.Debugf("MSG %s decode ok", trace)

	if err := s.store.SaveParsed(ctx, in.MessageID, out); err != nil {
		log.Errorf("MSG %s db update error: %s", trace, describeDBError(err))
		return nil, errors.Wrap(err, "db update parsed_json")
	}
	log.Debugf("MSG %s db update ok message_id=%d", trace, in.MessageID)

	raw, _ := hex.DecodeString(in.Payload)
	ad := Advertisement{
		MessageID:  in.MessageID,
		DeviceMAC:  in.DeviceMAC,
		GatewayMAC: in.GatewayMAC,
		Timestamp:  in.Timestamp,
		RSSI:       in.RSSI,
		Raw:        raw,
		Packet:     p,
	}
	if id, ok := p.ManufacturerID(); ok {
		ad.Manufacturer = &id
	}
	ad.Name, _, _ = p.Name()
	if err := s.store.InsertAdvertisement(ctx, ad); err != nil {
		// non fatal, parser_json is stored
		log.Errorf("MSG %s insert advertisement: %s", trace, describeDBError(err))
	}

	frameType, _ := out["frame_type"].(string)
	if s.pub != nil {
		evt := CallbackEvent{
			DeviceId:  strings.ToUpper(in.DeviceMAC),
			Type:      deriveEventType(dev.HWType, frameType, out),
			Timestamp: in.Timestamp,
			GatewayID: strings.ToUpper(in.GatewayMAC),
			Data: map[string]any{
				"parsed_json": out,
				"raw_data":    in.Payload,
			},
			BackendID: in.MessageID,
		}
		if u := serviceUUIDText(p); u != "" {
			evt.Data["uuid"] = u
		}
		if frameType != "" {
			evt.Data["frame_type"] = frameType
		}
		if in.RSSI != nil {
			evt.Data["rssi"] = *in.RSSI
		}
		if err := s.pub.Publish(ctx, evt); err != nil {
			// non fatal, parser_json is stored
			log.Errorf("MSG %s publishCallback error: %v", trace, err)
		} else {
			log.Debugf("MSG %s publishCallback ok device=%s", trace, evt.DeviceId)
		}
	} else {
		log.Debugf("MSG %s pubsub not initialized; skipping publish", trace)
	}

	return &Result{
		Status:     "ok",
		MessageID:  in.MessageID,
		DeviceHW:   dev.HWType,
		FrameType:  frameType,
		Structures: len(p.Structures),
		Ms:         time.Since(start).Milliseconds(),
	}, nil
}

type decodeRequest struct {
	Payload string `json:"payload"`
	Strict  bool   `json:"strict"`
}

type decodeResponse struct {
	Structures []advdata.Structure `json:"ad_structs"`
	Summary    map[string]any      `json:"summary"`
	Truncated  string              `json:"truncated,omitempty"`
}

// handleDecode frames a payload without touching the database.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only POST", http.StatusMethodNotAllowed)
		return
	}
	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	p, err := s.packet(strings.TrimSpace(req.Payload))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := decodeResponse{Structures: p.Structures, Summary: adSummary(p, s.registry.Load())}
	if resp.Structures == nil {
		resp.Structures = []advdata.Structure{}
	}
	if err := p.Validate(); err != nil {
		if req.Strict {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp.Truncated = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 0, 16)
	if err != nil {
		http.Error(w, "company id must be a 16-bit number", http.StatusBadRequest)
		return
	}
	c, ok := s.registry.Load().Company(int(id))
	if !ok {
		http.Error(w, errors.Wrapf(registry.ErrNotFound, "company 0x%04X", id).Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(c)
}

func normalize(m *MQTTMessage) {
	m.DeviceMAC = strings.ToLower(strings.NewReplacer(":", "", "-", "", ".", "", " ", "").Replace(m.DeviceMAC))
	m.GatewayMAC = strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "", " ", "").Replace(m.GatewayMAC))
	m.Payload = strings.TrimSpace(m.Payload)
}

func validate(m *MQTTMessage) error {
	if m.MessageID <= 0 {
		return errors.New("message_id must be > 0")
	}
	if m.DeviceMAC == "" {
		return errors.New("device_mac required")
	}
	if m.Payload == "" {
		return errors.New("payload empty")
	}
	if m.Timestamp <= 0 {
		return errors.New("timestamp ms required")
	}
	if !isLikelyHex(m.Payload) {
		return errors.New("payload is not hex-like")
	}
	return nil
}

func head(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func isLikelyHex(s string) bool {
	if len(s) == 0 || (len(s)%2) != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func ptrIntStr(p *int) string {
	if p == nil {
		return "nil"
	}
	return strconv.Itoa(*p)
}

func genTraceID() string {
	return fmt.Sprintf("%08x", rand.Uint32())
}

func deriveEventType(devHW, frameType string, parsed map[string]any) string {
	for _, k := range []string{"type", "message_type", "messageType"} {
		if v, ok := parsed[k].(string); ok && v != "" {
			return v
		}
	}
	if frameType == "" {
		return slugDeviceFamily(devHW)
	}
	return slugDeviceFamily(devHW) + "/" + frameType
}

// slugDeviceFamily turns a device family into a predictable slug, "H4 Pro" -> "h4-pro".
func slugDeviceFamily(s string) string {
	b := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b = append(b, unicode.ToLower(r))
		case r == ' ' || r == '_' || r == '-' || r == '/':
			if len(b) == 0 || b[len(b)-1] == '-' {
				continue
			}
			b = append(b, '-')
		}
	}
	if len(b) > 0 && b[len(b)-1] == '-' {
		b = b[:len(b)-1]
	}
	if len(b) == 0 {
		return "unknown"
	}
	return string(b)
}
