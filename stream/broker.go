// Package stream fans committed board mutations out to connected viewers.
package stream

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

// Frame is the wire shape pushed to every viewer on each mutation.
type Frame struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// viewerBuffer bounds how many undelivered frames a slow viewer may hold
// before further frames are skipped for it.
const viewerBuffer = 16

// Viewer is one connected consumer of the push channel.
type Viewer struct {
	ch chan []byte
}

// Frames returns the channel of encoded frames for this viewer.
func (v *Viewer) Frames() <-chan []byte { return v.ch }

// Broker is a concurrency-safe registry of live viewers. Delivery is
// at-most-once and best effort: a viewer whose buffer is full is skipped
// without blocking the publisher or the other viewers.
type Broker struct {
	logger *log.Logger

	mu      sync.Mutex
	viewers map[*Viewer]struct{}
}

func NewBroker(logger *log.Logger) *Broker {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Broker{logger: logger, viewers: make(map[*Viewer]struct{})}
}

// Subscribe registers a live viewer.
func (b *Broker) Subscribe() *Viewer {
	v := &Viewer{ch: make(chan []byte, viewerBuffer)}
	b.mu.Lock()
	b.viewers[v] = struct{}{}
	n := len(b.viewers)
	b.mu.Unlock()
	b.logger.WithField("viewers", n).Debug("viewer connected")
	return v
}

// Unsubscribe removes a viewer from the registry.
func (b *Broker) Unsubscribe(v *Viewer) {
	b.mu.Lock()
	delete(b.viewers, v)
	n := len(b.viewers)
	b.mu.Unlock()
	b.logger.WithField("viewers", n).Debug("viewer disconnected")
}

// Publish encodes one frame and hands it to every currently-connected
// viewer. Sends happen under the registry lock so all viewers observe
// published frames in the same relative order.
func (b *Broker) Publish(event string, payload any) {
	frame, err := sonic.ConfigStd.Marshal(Frame{
		Event:     event,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		b.logger.WithError(err).WithField("event", event).Error("encode broadcast frame")
		return
	}

	b.mu.Lock()
	for v := range b.viewers {
		select {
		case v.ch <- frame:
		default:
			// Viewer is not keeping up; skip it rather than block.
		}
	}
	b.mu.Unlock()
}

// ViewerCount reports the number of connected viewers.
func (b *Broker) ViewerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewers)
}
