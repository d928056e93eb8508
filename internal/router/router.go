// Package router fans one speaker's push stream out to the projections that
// registered interest in each resource topic.
package router

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
)

// Handler consumes the raw body of one push message. Handlers run
// synchronously on the dispatch path and must not block; anything needing
// further I/O hands off to its own goroutine.
type Handler func(body json.RawMessage)

type entry struct {
	name    string
	handler Handler
}

// Router is the single entry point for a device's inbound push messages.
// Registration is additive and process-lifetime; there is no unsubscribe.
type Router struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]entry
}

// New creates a Router. Attach it to a connection with
// speaker.AttachReceiver(r.Dispatch).
func New(logger *zap.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string][]entry),
	}
}

// Register adds a handler for a topic. name identifies the handler in logs.
// Multiple handlers may share one topic; each receives every message.
func (r *Router) Register(topic, name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = append(r.handlers[topic], entry{name: name, handler: h})
}

// Topics returns the set of topics that have at least one handler.
func (r *Router) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	return topics
}

// Dispatch routes one push message to every handler registered for its
// topic. A panic in one handler is logged and must not stop delivery to the
// rest, nor take down the connection's read loop.
func (r *Router) Dispatch(msg bose.Message) {
	topic := msg.Header.Resource
	if topic == "" {
		r.logger.Debug("Dropping push without resource topic")
		return
	}

	r.mu.RLock()
	entries := append([]entry(nil), r.handlers[topic]...)
	r.mu.RUnlock()

	if len(entries) == 0 {
		r.logger.Debug("No handler for topic", zap.String("topic", topic))
		return
	}

	for _, e := range entries {
		r.invoke(topic, e, msg.Body)
	}
}

func (r *Router) invoke(topic string, e entry, body json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Push handler panicked",
				zap.String("topic", topic),
				zap.String("handler", e.name),
				zap.Any("panic", rec))
		}
	}()
	e.handler(body)
}
