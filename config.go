package main

import (
	"strings"

	"github.com/urfave/cli"
)

var (
	flgLogLevel = cli.StringFlag{Name: "log-level", Value: "INFO", EnvVar: "ADP_LOG_LEVEL", Usage: "CRITICAL, ERROR, WARNING, NOTICE, INFO or DEBUG"}
	flgSnapshot = cli.StringFlag{Name: "registry-snapshot", EnvVar: "REGISTRY_SNAPSHOT", Usage: "Registry snapshot to load instead of the packaged tables"}

	flgPort      = cli.StringFlag{Name: "port, p", Value: "8080", EnvVar: "HTTPPORT", Usage: "HTTP port"}
	flgCacheSize = cli.IntFlag{Name: "decode-cache", Value: 1024, EnvVar: "DECODE_CACHE_SIZE", Usage: "Parsed payloads kept in memory"}
	flgPreview   = cli.IntFlag{Name: "payload-preview", Value: 32, EnvVar: "LOG_PAYLOAD_PREVIEW_CHARS", Usage: "Payload characters shown in logs"}

	flgDBUser     = cli.StringFlag{Name: "db-user", EnvVar: "DB_USER"}
	flgDBPassword = cli.StringFlag{Name: "db-password", EnvVar: "DB_PASSWORD"}
	flgDBName     = cli.StringFlag{Name: "db-name", EnvVar: "DB_NAME"}
	flgInstance   = cli.StringFlag{Name: "instance", EnvVar: "INSTANCE_CONNECTION_NAME", Usage: "Cloud SQL instance connection name"}
	flgPrivateIP  = cli.StringFlag{Name: "private-ip", EnvVar: "PRIVATE_IP", Usage: "Dial Cloud SQL over private IP when set"}

	flgProject  = cli.StringFlag{Name: "project", EnvVar: "GCP_PROJECT_ID"}
	flgTopic    = cli.StringFlag{Name: "callback-topic", EnvVar: "CALLBACK_TOPIC", Usage: "Pub/Sub topic for callback events"}
	flgOrdering = cli.StringFlag{Name: "callback-ordering", EnvVar: "CALLBACK_ORDERING", Usage: "Order callbacks per device (1, true, yes)"}

	flgMQTTHost  = cli.StringFlag{Name: "mqtt-host", EnvVar: "MQTT_HOST", Usage: "wsmqttrt broker host"}
	flgMQTTTopic = cli.StringFlag{Name: "mqtt-topic", Value: "/gw/+/adv", EnvVar: "MQTT_TOPIC", Usage: "Topic carrying gateway messages"}
	flgSnappy    = cli.BoolFlag{Name: "snappy", Usage: "Payloads are snappy compressed"}
	flgDedupe    = cli.IntFlag{Name: "dedupe", Value: 4096, Usage: "Recent message ids remembered to drop redeliveries"}
)

// serviceFlags are shared by the commands that run the gateway pipeline.
var serviceFlags = []cli.Flag{
	flgPreview,
	flgDBUser, flgDBPassword, flgDBName, flgInstance, flgPrivateIP,
	flgProject, flgTopic, flgOrdering,
}

type dbConfig struct {
	User, Password, Name string
	Instance             string
	PrivateIP            bool
}

type pubsubConfig struct {
	Project, Topic string
	Ordering       bool
}

func dbConfigFrom(c *cli.Context) dbConfig {
	return dbConfig{
		User:      c.String("db-user"),
		Password:  c.String("db-password"),
		Name:      c.String("db-name"),
		Instance:  c.String("instance"),
		PrivateIP: c.String("private-ip") != "",
	}
}

func pubsubConfigFrom(c *cli.Context) pubsubConfig {
	cfg := pubsubConfig{Project: c.String("project"), Topic: c.String("callback-topic")}
	switch strings.ToLower(c.String("callback-ordering")) {
	case "1", "true", "yes":
		cfg.Ordering = true
	}
	return cfg
}
