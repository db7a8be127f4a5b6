// Package bridge republishes relay frames to an MQTT broker. Each broker
// connection joins the hub as a fresh subscriber: it is evicted like any other
// subscriber when the link drops, and a new one joins once paho reconnects.
// Publishes that fail or time out while the link is up are dropped, not
// treated as a dead subscriber.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/biorelay/relay/internal/ws"
)

var (
	// ErrNotConnected is returned by Send while the broker link is down.
	ErrNotConnected = errors.New("mqtt not connected")

	errPublishTimeout = errors.New("publish not acknowledged in time")
)

const (
	connectTimeout        = 5 * time.Second
	defaultPublishTimeout = 10 * time.Second
)

// Hub is the part of ws.Hub the bridge needs.
type Hub interface {
	Join(ws.Subscriber) error
	Leave(ws.Subscriber)
}

// Config selects the broker and topic.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
}

// Stats counts publishes since the bridge was created.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// MQTT publishes every hub message to one topic.
type MQTT struct {
	cfg    Config
	hub    Hub
	client mqtt.Client

	publishTimeout time.Duration
	dropLog        *rate.Limiter

	mu   sync.Mutex
	link *link

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// link is the hub subscriber for one broker connection. It is never rejoined:
// a reconnect gets a new link with a new id.
type link struct {
	id string
	b  *MQTT
}

func (l *link) ID() string { return l.id }

// Send hands msg to paho without waiting for the broker. Only a closed
// connection fails the link.
func (l *link) Send(_ context.Context, msg []byte) error {
	return l.b.publish(msg)
}

// New prepares a bridge. Nothing is sent to the broker until Connect.
func New(cfg Config, hub Hub) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = "biorelay-" + uuid.NewString()
	}
	b := newBridge(cfg, hub)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = b.onConnect
	opts.OnConnectionLost = b.onConnectionLost

	b.client = mqtt.NewClient(opts)
	return b
}

func newBridge(cfg Config, hub Hub) *MQTT {
	return &MQTT{
		cfg:            cfg,
		hub:            hub,
		publishTimeout: defaultPublishTimeout,
		dropLog:        rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

func newWithClient(cfg Config, hub Hub, client mqtt.Client) *MQTT {
	b := newBridge(cfg, hub)
	b.client = client
	return b
}

// Connect starts the broker connection. If the broker is not reachable
// within a few seconds paho keeps retrying in the background and the bridge
// joins the hub whenever the connection comes up.
func (b *MQTT) Connect(ctx context.Context) error {
	log.Printf("mqtt: connecting to %s", b.cfg.Broker)
	token := b.client.Connect()

	wait, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect %s: %w", b.cfg.Broker, err)
		}
	case <-wait.Done():
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", b.cfg.Broker)
	}
	return nil
}

// Disconnect leaves the hub and closes the broker connection.
func (b *MQTT) Disconnect() {
	b.leave()
	if b.client.IsConnected() {
		b.client.Disconnect(250)
	}
	st := b.Stats()
	log.Printf("mqtt: disconnected (%d sent, %d dropped)", st.Sent, st.Dropped)
}

// Stats returns the publish counters.
func (b *MQTT) Stats() Stats {
	return Stats{Sent: b.sent.Load(), Dropped: b.dropped.Load()}
}

func (b *MQTT) publish(msg []byte) error {
	if !b.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := b.client.Publish(b.cfg.Topic, b.cfg.QoS, false, msg)
	b.sent.Add(1)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			b.drop(err)
		}
	default:
		go b.await(token)
	}
	return nil
}

func (b *MQTT) await(token mqtt.Token) {
	if !token.WaitTimeout(b.publishTimeout) {
		b.drop(errPublishTimeout)
		return
	}
	if err := token.Error(); err != nil {
		b.drop(err)
	}
}

func (b *MQTT) drop(err error) {
	n := b.dropped.Add(1)
	if b.dropLog.Allow() {
		log.Printf("mqtt: publish to %s dropped: %v (%d dropped so far)", b.cfg.Topic, err, n)
	}
}

func (b *MQTT) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.link != nil {
		b.hub.Leave(b.link)
		b.link = nil
	}
}

func (b *MQTT) onConnect(mqtt.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.link != nil {
		b.hub.Leave(b.link)
		b.link = nil
	}
	l := &link{id: fmt.Sprintf("mqtt:%s:%s", b.cfg.ClientID, uuid.NewString()), b: b}
	if err := b.hub.Join(l); err != nil {
		log.Printf("mqtt: connected to %s but could not subscribe to frames: %v", b.cfg.Broker, err)
		return
	}
	b.link = l
	log.Printf("mqtt: connected to %s, publishing to %s", b.cfg.Broker, b.cfg.Topic)
}

func (b *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	b.leave()
	log.Printf("mqtt: connection lost: %v, reconnecting", err)
}
