package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"ble-adparser/advdata"
	"ble-adparser/bleuuid"
	"ble-adparser/registry"
)

type fakeStore struct {
	mu      sync.Mutex
	devices map[string]Device
	saved   map[int64]any
	ads     []Advertisement
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices: map[string]Device{
			"aabbccddeeff": {Name: "cold room", ID: "dev-1", HWType: "H4 Pro"},
			"c0ffee000001": {Name: "beacon", ID: "dev-2", HWType: "iBeacon"},
			"010203040506": {Name: "mystery", ID: "dev-3", HWType: "H9"},
		},
		saved: map[int64]any{},
	}
}

func (f *fakeStore) Device(_ context.Context, mac string) (Device, error) {
	if d, ok := f.devices[mac]; ok {
		return d, nil
	}
	return Device{}, errors.Wrapf(errNotFound, "device %s", mac)
}

func (f *fakeStore) Gateway(_ context.Context, mac string) (Gateway, error) {
	return Gateway{}, errors.Wrapf(errNotFound, "gateway %s", mac)
}

func (f *fakeStore) SaveParsed(_ context.Context, id int64, v any) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[id] = v
	return nil
}

func (f *fakeStore) InsertAdvertisement(_ context.Context, a Advertisement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ads = append(f.ads, a)
	return nil
}

type fakePublisher struct {
	events []CallbackEvent
}

func (f *fakePublisher) Publish(_ context.Context, evt CallbackEvent) error {
	f.events = append(f.events, evt)
	return nil
}

func newTestServer(t *testing.T, store Store, pub Publisher) *Server {
	t.Helper()
	srv, err := NewServer(store, pub, registry.Default(), 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func h4Payload(t *testing.T) string {
	t.Helper()
	p, err := advdata.Packet{}.
		AppendFlags(advdata.FlagGeneralDiscoverable|advdata.FlagBREDRNotSupported).
		AppendServiceData(bleuuid.From16(0xFEAB), []byte{0x70, 0x00, 0x0A, 0x00, 0xFA, 0x02, 0x26, 0x0B, 0xB8, 0x02})
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(b)
}

func postJSON(t *testing.T, h http.Handler, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b)))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, newFakeStore(), nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "parser ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestMessageH4Pro(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	h := newTestServer(t, store, pub).Handler()
	rssi := -70

	rec := postJSON(t, h, "/message", MQTTMessage{
		MessageID:  42,
		GatewayMAC: "11:22:33:44:55:66",
		DeviceMAC:  "AA:BB:CC:DD:EE:FF",
		Payload:    strings.ToUpper(h4Payload(t)),
		Timestamp:  1700000000000,
		RSSI:       &rssi,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Status != "ok" || res.MessageID != 42 || res.FrameType != "0x70" || res.DeviceHW != "H4 Pro" || res.Structures != 2 {
		t.Errorf("result = %+v", res)
	}

	out, ok := store.saved[42].(map[string]any)
	if !ok {
		t.Fatalf("parser_json = %#v", store.saved[42])
	}
	if out["temperature"] != 25.0 || out["humidity"] != 55.0 || out["batt_vol"] != 3000 {
		t.Errorf("parser_json = %v", out)
	}
	if _, ok := out["advertisement"].(map[string]any)["services"]; !ok {
		t.Errorf("advertisement summary = %v", out["advertisement"])
	}

	if len(store.ads) != 1 || store.ads[0].DeviceMAC != "aabbccddeeff" || store.ads[0].GatewayMAC != "112233445566" {
		t.Fatalf("advertisements = %+v", store.ads)
	}
	if got := hex.EncodeToString(store.ads[0].Raw); got != h4Payload(t) {
		t.Errorf("raw = %s", got)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Type != "h4pro-t&h" || evt.DeviceId != "AABBCCDDEEFF" || evt.GatewayID != "112233445566" || evt.BackendID != 42 {
		t.Errorf("event = %+v", evt)
	}
	if evt.Data["uuid"] != "FEAB" || evt.Data["frame_type"] != "0x70" || evt.Data["rssi"] != -70 {
		t.Errorf("event data = %v", evt.Data)
	}
}

func TestMessageIBeacon(t *testing.T) {
	store := newFakeStore()
	h := newTestServer(t, store, nil).Handler()
	payload := "0201061aff4c000215e2c56db5dffb48d2b060d0f5a71096e000010002c5"
	rec := postJSON(t, h, "/message", MQTTMessage{MessageID: 7, DeviceMAC: "c0:ff:ee:00:00:01", Payload: payload, Timestamp: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := store.saved[7].(map[string]any)
	if out["major"] != 1 || out["minor"] != 2 || out["measured_power"] != -59 {
		t.Errorf("parser_json = %v", out)
	}
	summary := out["advertisement"].(map[string]any)
	if summary["company_name"] != "Apple, Inc." || summary["company_id"] != "0x004C" {
		t.Errorf("summary = %v", summary)
	}
	if m := store.ads[0].Manufacturer; m == nil || *m != 0x004C {
		t.Errorf("manufacturer = %v", m)
	}
}

func TestMessageRejected(t *testing.T) {
	good := MQTTMessage{MessageID: 1, DeviceMAC: "aabbccddeeff", Timestamp: 1}
	tests := []struct {
		name   string
		mutate func(m *MQTTMessage)
		status int
		body   string
	}{
		{"no id", func(m *MQTTMessage) { m.MessageID = 0 }, http.StatusBadRequest, "message_id"},
		{"no timestamp", func(m *MQTTMessage) { m.Timestamp = 0 }, http.StatusBadRequest, "timestamp"},
		{"odd hex", func(m *MQTTMessage) { m.Payload = "02010" }, http.StatusBadRequest, "hex"},
		{"unknown device", func(m *MQTTMessage) { m.DeviceMAC = "ffffffffffff" }, http.StatusBadRequest, "device not found"},
		{"no parser", func(m *MQTTMessage) { m.DeviceMAC = "010203040506" }, http.StatusBadRequest, "no parser"},
		{"no frame", func(m *MQTTMessage) { m.Payload = "020106" }, http.StatusBadRequest, "parse error"},
	}
	for _, tt := range tests {
		m := good
		m.Payload = h4Payload(t)
		tt.mutate(&m)
		store := newFakeStore()
		rec := postJSON(t, newTestServer(t, store, nil).Handler(), "/message", m)
		if rec.Code != tt.status || !strings.Contains(rec.Body.String(), tt.body) {
			t.Errorf("%s: %d %q", tt.name, rec.Code, rec.Body.String())
		}
		if len(store.saved) != 0 {
			t.Errorf("%s: stored parser_json", tt.name)
		}
	}

	h := newTestServer(t, newFakeStore(), nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/message", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /message = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/message", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d", rec.Code)
	}
}

func TestMessageStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("connection reset")
	pub := &fakePublisher{}
	rec := postJSON(t, newTestServer(t, store, pub).Handler(), "/message",
		MQTTMessage{MessageID: 3, DeviceMAC: "aabbccddeeff", Payload: h4Payload(t), Timestamp: 1})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status %d", rec.Code)
	}
	if len(pub.events) != 0 {
		t.Error("published after failed store")
	}
}

func TestDecodeEndpoint(t *testing.T) {
	h := newTestServer(t, newFakeStore(), nil).Handler()

	rec := postJSON(t, h, "/decode", decodeRequest{Payload: "0201060c0954657374204465766963650303aabb"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Structs   []json.RawMessage `json:"ad_structs"`
		Summary   map[string]any    `json:"summary"`
		Truncated string            `json:"truncated"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Structs) != 3 || resp.Summary["local_name"] != "Test Device" || resp.Truncated != "" {
		t.Errorf("resp = %s", rec.Body.String())
	}

	rec = postJSON(t, h, "/decode", decodeRequest{Payload: "02010605ff4c00"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"truncated"`) {
		t.Errorf("truncated = %d %s", rec.Code, rec.Body.String())
	}
	rec = postJSON(t, h, "/decode", decodeRequest{Payload: "02010605ff4c00", Strict: true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("strict truncated = %d", rec.Code)
	}
	rec = postJSON(t, h, "/decode", decodeRequest{Payload: "zz"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad hex = %d", rec.Code)
	}
	rec = postJSON(t, h, "/decode", decodeRequest{Payload: ""})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ad_structs":[]`) {
		t.Errorf("empty = %d %s", rec.Code, rec.Body.String())
	}
}

func TestCompanyEndpoint(t *testing.T) {
	h := newTestServer(t, newFakeStore(), nil).Handler()
	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/registry/companies/0x004C", http.StatusOK, "Apple, Inc."},
		{"/registry/companies/76", http.StatusOK, "Apple, Inc."},
		{"/registry/companies/0x1234", http.StatusNotFound, "not found"},
		{"/registry/companies/apple", http.StatusBadRequest, "16-bit"},
		{"/registry/companies/70000", http.StatusBadRequest, "16-bit"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.status || !strings.Contains(rec.Body.String(), tt.body) {
			t.Errorf("%s = %d %q", tt.path, rec.Code, rec.Body.String())
		}
	}
}

func TestPacketCache(t *testing.T) {
	srv := newTestServer(t, newFakeStore(), nil)
	a, err := srv.packet("020106")
	if err != nil {
		t.Fatal(err)
	}
	b, err := srv.packet("020106")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) || srv.packets.Len() != 1 {
		t.Errorf("cache len = %d", srv.packets.Len())
	}
	if _, err := srv.packet("0201"); err != nil {
		t.Fatal(err)
	}
	if srv.packets.Len() != 2 {
		t.Errorf("cache len = %d", srv.packets.Len())
	}
}

func TestIngester(t *testing.T) {
	store := newFakeStore()
	g := newIngester(newTestServer(t, store, nil), true, 8)
	msg, err := json.Marshal(MQTTMessage{MessageID: 9, DeviceMAC: "aabbccddeeff", Payload: h4Payload(t), Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}
	payload := snappy.Encode(nil, msg)
	g.handle([]byte("/gw/112233445566/adv"), payload)
	g.handle([]byte("/gw/112233445566/adv"), payload)
	if len(store.saved) != 1 || len(store.ads) != 1 {
		t.Errorf("saved=%d ads=%d", len(store.saved), len(store.ads))
	}

	plain, err := json.Marshal(MQTTMessage{MessageID: 10, DeviceMAC: "aabbccddeeff", Payload: h4Payload(t), Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}
	g.handle([]byte("/gw/112233445566/adv"), plain)
	if len(store.ads) != 1 {
		t.Errorf("uncompressed payload processed")
	}
}

func TestDeriveEventType(t *testing.T) {
	tests := []struct {
		hw, frame string
		parsed    map[string]any
		want      string
	}{
		{"H4 Pro", "0x70", map[string]any{"message_type": "h4pro-t&h"}, "h4pro-t&h"},
		{"H4 Pro", "0x70", map[string]any{}, "h4-pro/0x70"},
		{" Moko_H5 / Plus ", "", nil, "moko-h5-plus"},
		{"???", "", nil, "unknown"},
	}
	for _, tt := range tests {
		if got := deriveEventType(tt.hw, tt.frame, tt.parsed); got != tt.want {
			t.Errorf("deriveEventType(%q, %q) = %q, want %q", tt.hw, tt.frame, got, tt.want)
		}
	}
}
