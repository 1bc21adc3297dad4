package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/pkg/errors"
)

type CallbackEvent struct {
	DeviceId  string         `json:"deviceId"`
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	GatewayID string         `json:"gateway_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	BackendID int64
}

// Publisher delivers callback events downstream.
type Publisher interface {
	Publish(ctx context.Context, evt CallbackEvent) error
}

type pubsubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	ordering  bool
	topic     string
}

func newPubSubPublisher(ctx context.Context, cfg pubsubConfig) (*pubsubPublisher, error) {
	if cfg.Project == "" || cfg.Topic == "" {
		return nil, errors.New("missing GCP_PROJECT_ID or CALLBACK_TOPIC env var")
	}

	cl, err := pubsub.NewClient(ctx, cfg.Project)
	if err != nil {
		return nil, errors.Wrap(err, "pubsub.NewClient")
	}

	// Topic ID or full name.
	pub := cl.Publisher(cfg.Topic)
	pub.PublishSettings.DelayThreshold = 50 * time.Millisecond
	pub.PublishSettings.Timeout = 10 * time.Second
	pub.EnableMessageOrdering = cfg.Ordering

	log.Infof("Pub/Sub v2 initialized: topic=%s ordering=%v", cfg.Topic, cfg.Ordering)
	return &pubsubPublisher{client: cl, publisher: pub, ordering: cfg.Ordering, topic: cfg.Topic}, nil
}

func (p *pubsubPublisher) Close() {
	p.publisher.Stop()
	_ = p.client.Close()
}

func (p *pubsubPublisher) Publish(ctx context.Context, evt CallbackEvent) error {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}
	evt.DeviceId = strings.ToUpper(evt.DeviceId)

	b, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "marshal callback event")
	}

	msg := &pubsub.Message{
		Data: b,
		Attributes: map[string]string{
			"source":     "ble-adparser",
			"type":       evt.Type,
			"deviceId":   evt.DeviceId,
			"gateway_id": evt.GatewayID,
		},
	}
	if p.ordering {
		// per-device ordering; the subscription must enable it too
		msg.OrderingKey = evt.DeviceId
	}
	id, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return errors.Wrap(err, "publish failed")
	}
	log.Debugf("publishCallback ok topic=%s id=%s bytes=%d", p.topic, id, len(b))
	return nil
}
