package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"ble-adparser/advdata"
)

var errNotFound = errors.New("not found")

// Device is a row of the devices table.
type Device struct {
	Name   string
	ID     string
	HWType string
}

// Gateway is a row of the gateways table.
type Gateway struct {
	Name     string
	HWType   string
	ClientID string
}

// Advertisement is one framed advertisement kept for later queries.
type Advertisement struct {
	MessageID    int64
	DeviceMAC    string
	GatewayMAC   string
	Timestamp    int64
	RSSI         *int
	Raw          []byte
	Packet       advdata.Packet
	Manufacturer *uint16
	Name         string
}

// Store is the persistence the gateway pipeline uses.
type Store interface {
	Device(ctx context.Context, mac string) (Device, error)
	Gateway(ctx context.Context, mac string) (Gateway, error)
	SaveParsed(ctx context.Context, messageID int64, v any) error
	InsertAdvertisement(ctx context.Context, a Advertisement) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

func connectDB(ctx context.Context, cfg dbConfig) (*pgStore, error) {
	if cfg.User == "" || cfg.Password == "" || cfg.Name == "" || cfg.Instance == "" {
		return nil, errors.New("missing DB envs (DB_USER/DB_PASSWORD/DB_NAME/INSTANCE_CONNECTION_NAME)")
	}

	dsn := fmt.Sprintf("user=%s password=%s database=%s sslmode=disable", cfg.User, cfg.Password, cfg.Name)

	opts := []cloudsqlconn.Option{}
	if cfg.PrivateIP {
		opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
	}
	d, err := cloudsqlconn.NewDialer(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "cloudsql dialer")
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.ParseConfig")
	}
	pcfg.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return d.Dial(ctx, cfg.Instance)
	}
	pcfg.MinConns = 0
	pcfg.MaxConns = 10
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.NewWithConfig")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "db ping")
	}
	log.Notice("CONNECTED TO DATABASE")
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Close() {
	s.pool.Close()
}

// macHexToBytea converts a mac in hex, with or without separators, to its 6 raw bytes.
func macHexToBytea(s string) ([]byte, error) {
	s = strings.NewReplacer(":", "", "-", "", ".", "", " ", "").Replace(strings.TrimSpace(s))
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid hex mac %q", s)
	}
	if len(b) != 6 {
		return nil, errors.Errorf("mac must be 6 bytes, got %d", len(b))
	}
	return b, nil
}

func (s *pgStore) Gateway(ctx context.Context, mac string) (Gateway, error) {
	var g Gateway
	bmac, err := macHexToBytea(mac)
	if err != nil {
		return g, err
	}
	err = s.pool.QueryRow(ctx,
		`SELECT gateway_name, gateway_hw_type, client_id
			FROM gateways
			WHERE gateway_mac = $1`, bmac).Scan(&g.Name, &g.HWType, &g.ClientID)
	return g, noRows(err, "gateway %s", mac)
}

func (s *pgStore) Device(ctx context.Context, mac string) (Device, error) {
	var d Device
	bmac, err := macHexToBytea(mac)
	if err != nil {
		return d, err
	}
	err = s.pool.QueryRow(ctx,
		`SELECT device_name, device_id, device_hw_type
			FROM devices
			WHERE device_mac = $1`, bmac).Scan(&d.Name, &d.ID, &d.HWType)
	return d, noRows(err, "device %s", mac)
}

// SaveParsed stores v in parser_json of the existing backend_message row.
func (s *pgStore) SaveParsed(ctx context.Context, messageID int64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal parser_json")
	}
	ct, err := s.pool.Exec(ctx, `UPDATE backend_message SET parser_json = $2 WHERE id = $1`, messageID, b)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.Wrapf(errNotFound, "no backend_message row found for id=%d", messageID)
	}
	return nil
}

func (s *pgStore) InsertAdvertisement(ctx context.Context, a Advertisement) error {
	dmac, err := macHexToBytea(a.DeviceMAC)
	if err != nil {
		return err
	}
	var gmac []byte
	if a.GatewayMAC != "" {
		if gmac, err = macHexToBytea(a.GatewayMAC); err != nil {
			return err
		}
	}
	structs, err := json.Marshal(a.Packet)
	if err != nil {
		return errors.Wrap(err, "marshal ad_structs")
	}
	var manufacturer *int32
	if a.Manufacturer != nil {
		m := int32(*a.Manufacturer)
		manufacturer = &m
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO advertisements
			(message_id, device_mac, gateway_mac, ts, rssi, raw, ad_structs, company_id, local_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
			ON CONFLICT (message_id) DO NOTHING`,
		a.MessageID, dmac, gmac, time.UnixMilli(a.Timestamp), a.RSSI, a.Raw, structs, manufacturer, a.Name)
	return err
}

func noRows(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(errNotFound, format, args...)
	}
	return err
}

// describeDBError adds the Postgres detail to err when there is one.
func describeDBError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Sprintf("%s (%s) detail=%s", pgErr.Message, pgErr.Code, pgErr.Detail)
	}
	return err.Error()
}
