package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"ble-adparser/advdata"
	"ble-adparser/registry"
)

func main() {
	app := cli.NewApp()
	app.Name = "ble-adparser"
	app.Usage = "Parse BLE advertising data sent by gateways"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{flgLogLevel, flgSnapshot}
	app.Before = setup

	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP gateway service",
			Action: serveCommand,
			Flags:  append([]cli.Flag{flgPort, flgCacheSize}, serviceFlags...),
		},
		{
			Name:   "ingest",
			Usage:  "Process gateway messages from an MQTT topic",
			Action: ingestCommand,
			Flags:  append([]cli.Flag{flgMQTTHost, flgMQTTTopic, flgSnappy, flgDedupe, flgCacheSize}, serviceFlags...),
		},
		{
			Name:      "decode",
			Aliases:   []string{"d"},
			Usage:     "Decode a hex advertising payload",
			ArgsUsage: "<hex>",
			Action:    decodeCommand,
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "json, j", Usage: "Print JSON"},
				cli.BoolFlag{Name: "strict", Usage: "Fail on truncated structures"},
			},
		},
		{
			Name:  "registry",
			Usage: "Inspect and rebuild the identifier registry",
			Subcommands: []cli.Command{
				{
					Name:   "sync",
					Usage:  "Build the registry from an assigned_numbers checkout",
					Action: registrySyncCommand,
					Flags: []cli.Flag{
						cli.StringFlag{Name: "dir", Usage: "Root of the assigned_numbers checkout"},
						cli.StringFlag{Name: "out", Usage: "Directory for the JSON resource files"},
						cli.StringFlag{Name: "snapshot", Usage: "Snapshot file to write"},
					},
				},
				{
					Name:      "company",
					Usage:     "Look up a company identifier",
					ArgsUsage: "<id>",
					Action:    registryCompanyCommand,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(c *cli.Context) error {
	setupLogging(c.String("log-level"))
	if path := c.String("registry-snapshot"); path != "" {
		s, err := registry.OpenSnapshot(path)
		if err != nil {
			return errors.Wrap(err, "registry snapshot")
		}
		registry.Default().Store(s)
		log.Infof("registry loaded from %s: %d companies, %d uuids", path, len(s.Companies), len(s.UUIDs))
	}
	return nil
}

// pipeline connects the database and the callback publisher and returns the
// Server with a cleanup func.
func pipeline(c *cli.Context) (*Server, func(), error) {
	ctx := context.Background()
	store, err := connectDB(ctx, dbConfigFrom(c))
	if err != nil {
		return nil, nil, errors.Wrap(err, "db connect")
	}
	pub, err := newPubSubPublisher(ctx, pubsubConfigFrom(c))
	if err != nil {
		store.Close()
		return nil, nil, errors.Wrap(err, "initPubSub")
	}
	srv, err := NewServer(store, pub, registry.Default(), c.Int("decode-cache"), c.Int("payload-preview"))
	if err != nil {
		pub.Close()
		store.Close()
		return nil, nil, err
	}
	return srv, func() {
		pub.Close()
		store.Close()
	}, nil
}

func serveCommand(c *cli.Context) error {
	srv, closeFn, err := pipeline(c)
	if err != nil {
		return err
	}
	defer closeFn()

	addr := ":" + c.String("port")
	log.Noticef("parser listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "ListenAndServe")
	}
	return nil
}

func ingestCommand(c *cli.Context) error {
	host := c.String("mqtt-host")
	if host == "" {
		return errors.New("missing MQTT_HOST")
	}
	srv, closeFn, err := pipeline(c)
	if err != nil {
		return err
	}
	defer closeFn()

	return newIngester(srv, c.Bool("snappy"), c.Int("dedupe")).run(host, c.String("mqtt-topic"))
}

func decodeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("decode takes one hex payload", 2)
	}
	p, err := advdata.ParseHex(c.Args().First())
	if err != nil {
		return err
	}
	if c.Bool("strict") {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	renderPacket(os.Stdout, p, registry.Default().Load())
	return nil
}

func registrySyncCommand(c *cli.Context) error {
	dir := c.String("dir")
	if dir == "" {
		return cli.NewExitError("--dir is required", 2)
	}
	if c.String("out") == "" && c.String("snapshot") == "" {
		return cli.NewExitError("one of --out or --snapshot is required", 2)
	}
	s, dups, err := registry.LoadSIG(dir)
	if err != nil {
		return err
	}
	log.Infof("read %d companies, %d uuids, %d ad types from %s", len(s.Companies), len(s.UUIDs), len(s.ADTypes), dir)
	if dups > 0 {
		log.Warningf("%d duplicate keys ignored, first occurrence kept", dups)
	}
	if out := c.String("out"); out != "" {
		if err := registry.WriteJSON(out, s); err != nil {
			return err
		}
		log.Noticef("wrote %s, %s and %s to %s", registry.CompaniesFile, registry.UUIDsFile, registry.ADTypesFile, out)
	}
	if path := c.String("snapshot"); path != "" {
		if err := registry.SaveSnapshot(path, s); err != nil {
			return err
		}
		log.Noticef("wrote snapshot %s", path)
	}
	return nil
}

func registryCompanyCommand(c *cli.Context) error {
	id, err := strconv.ParseUint(c.Args().First(), 0, 16)
	if err != nil {
		return cli.NewExitError("company id must be a 16-bit number", 2)
	}
	co, ok := registry.Default().Load().Company(int(id))
	if !ok {
		return errors.Wrapf(registry.ErrNotFound, "company 0x%04X", id)
	}
	_, err = os.Stdout.WriteString(cyan(co.Name) + "\n")
	return err
}
