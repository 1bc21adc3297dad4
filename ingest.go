package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fabrikiot/wsmqttrt/wsmqttrtpuller"
	"github.com/golang/groupcache/lru"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// mqttPort is the websocket port of the wsmqttrt broker.
const mqttPort = 11884

const processTimeout = 30 * time.Second

// ingester feeds gateway messages received over MQTT into a Server.
type ingester struct {
	srv    *Server
	snappy bool

	mu   sync.Mutex
	seen *lru.Cache
}

func newIngester(srv *Server, snappyPayloads bool, dedupe int) *ingester {
	return &ingester{srv: srv, snappy: snappyPayloads, seen: lru.New(dedupe)}
}

// duplicate reports whether id was handled recently and remembers it.
func (g *ingester) duplicate(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen.Get(id); ok {
		return true
	}
	g.seen.Add(id, struct{}{})
	return false
}

func (g *ingester) handle(topic []byte, payload []byte) {
	trace := genTraceID()
	if g.snappy {
		b, err := snappy.Decode(nil, payload)
		if err != nil {
			log.Warningf("MQTT %s snappy decompression topic=%s: %v", trace, topic, err)
			return
		}
		payload = b
	}

	var in MQTTMessage
	if err := json.Unmarshal(payload, &in); err != nil {
		log.Warningf("MQTT %s unmarshal topic=%s: %v", trace, topic, err)
		return
	}
	if in.MessageID > 0 && g.duplicate(in.MessageID) {
		log.Debugf("MQTT %s duplicate message_id=%d", trace, in.MessageID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()
	res, err := g.srv.Process(ctx, trace, in)
	if err != nil {
		var rej *rejectError
		if errors.As(err, &rej) {
			log.Warningf("MQTT %s rejected message_id=%d: %v", trace, in.MessageID, err)
		} else {
			log.Errorf("MQTT %s message_id=%d: %v", trace, in.MessageID, err)
		}
		return
	}
	log.Infof("MQTT %s ok message_id=%d hw=%s ms=%d", trace, res.MessageID, res.DeviceHW, res.Ms)
}

// run subscribes to topic on host and processes messages until the process
// is interrupted or the puller stops on its own.
func (g *ingester) run(host, topic string) error {
	opts := wsmqttrtpuller.NewWsMqttRtPullerOpts(host, mqttPort)

	stopped := make(chan struct{})
	var once sync.Once
	state := &wsmqttrtpuller.WsMqttRtPullerStateCallback{
		Started: func() {
			log.Noticef("puller started host=%s", host)
		},
		Stopped: func() {
			once.Do(func() {
				log.Notice("puller stopped")
				close(stopped)
			})
		},
	}

	puller := wsmqttrtpuller.NewWsMqttRtPuller(opts, state, g.handle)
	go puller.Start()

	puller.Subscribe([]byte(topic), func(topic []byte, issubscribe bool, isok bool) {
		if isok {
			log.Infof("subscribed to topic: %s", topic)
		} else {
			log.Errorf("failed to subscribe to topic: %s", topic)
		}
	})

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)

	select {
	case <-sigch:
		log.Notice("interrupt signal received, stopping")
		puller.Stop()
		return nil
	case <-stopped:
		return errors.New("puller stopped")
	}
}
