// Package pubsub fans simulation frames, loader status and selections out to
// Server-Sent Events subscribers.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/TFMV/echoview/logging"
)

// Topics published by the server
const (
	TopicFrame     = "frame"
	TopicStatus    = "status"
	TopicSelection = "selection"
)

// ErrClosed is returned after the publisher shut down
var ErrClosed = errors.New("publisher is closed")

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // Per-topic ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	Topic() string

	// Events is closed when the subscription or publisher closes
	Events() <-chan Event

	Close() error
}

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events kept for replay (0 = none)
	ReplayAll  bool // Replay every buffered event instead of the last one
}

// Publisher implements publish/subscribe with per-topic replay buffers
type Publisher struct {
	mu            sync.RWMutex
	subscriptions map[string]map[*subscription]struct{}
	version       map[string]int
	eventBuffer   map[string][]Event
	topicConfig   map[string]TopicConfig
	queueSize     int
	closed        bool
}

// New creates a publisher whose subscribers queue up to queueSize events
// before new ones are dropped
func New(queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Publisher{
		subscriptions: make(map[string]map[*subscription]struct{}),
		version:       make(map[string]int),
		eventBuffer:   make(map[string][]Event),
		topicConfig:   make(map[string]TopicConfig),
		queueSize:     queueSize,
	}
}

// ConfigureTopic sets buffering configuration for a topic
func (p *Publisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicConfig[topic] = config
}

// Subscribe creates a subscription that ends when ctx is cancelled
func (p *Publisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	sub := &subscription{
		topic:     topic,
		events:    make(chan Event, p.queueSize),
		publisher: p,
	}
	if p.subscriptions[topic] == nil {
		p.subscriptions[topic] = make(map[*subscription]struct{})
	}
	p.subscriptions[topic][sub] = struct{}{}

	replay := p.eventBuffer[topic]
	if len(replay) > 0 && !p.topicConfig[topic].ReplayAll {
		replay = replay[len(replay)-1:]
	}
	for _, event := range replay {
		select {
		case sub.events <- event:
		default:
			logging.Warn("could not replay event to new subscriber", "topic", topic)
		}
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish marshals data and sends it to every subscriber of a topic without
// blocking. Slow subscribers miss events.
func (p *Publisher) Publish(topic, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	p.version[topic]++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    payload,
		Version: p.version[topic],
	}

	if config := p.topicConfig[topic]; config.BufferSize > 0 {
		buffer := append(p.eventBuffer[topic], event)
		if len(buffer) > config.BufferSize {
			buffer = buffer[len(buffer)-config.BufferSize:]
		}
		p.eventBuffer[topic] = buffer
	}

	for sub := range p.subscriptions[topic] {
		select {
		case sub.events <- event:
		default:
			logging.Debug("subscription queue full, dropping event", "topic", topic, "version", event.Version)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions to a topic
func (p *Publisher) Subscribers(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions[topic])
}

// Close shuts down the publisher and ends all subscriptions
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, subs := range p.subscriptions {
		for sub := range subs {
			sub.closeLocked()
		}
	}
	p.subscriptions = make(map[string]map[*subscription]struct{})
	return nil
}

func (p *Publisher) unsubscribe(sub *subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if subs := p.subscriptions[sub.topic]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(p.subscriptions, sub.topic)
		}
	}
	sub.closeLocked()
}

type subscription struct {
	topic     string
	events    chan Event
	publisher *Publisher
	closed    bool // guarded by publisher.mu
}

func (s *subscription) Topic() string {
	return s.topic
}

func (s *subscription) Events() <-chan Event {
	return s.events
}

func (s *subscription) Close() error {
	s.publisher.unsubscribe(s)
	return nil
}

// closeLocked closes the event channel once; publisher.mu must be held
func (s *subscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// WriteSSE writes an event in Server-Sent Events framing, named after its
// topic so browsers can listen per topic
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Version, event.Topic, payload)
	return err
}
