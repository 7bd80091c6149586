// Package msgbus carries work from any goroutine to the engine goroutine.
//
// Put never blocks and is safe from any goroutine. Handlers only run inside
// Poll or Run, on the goroutine calling them.
package msgbus

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// DefaultSize is the queue length used when New gets a non-positive size.
const DefaultSize = 16

// ErrFull is returned by Put when the queue has no room.
var ErrFull = errors.New("msgbus: queue full")

// Handler runs a message on the engine goroutine.
type Handler func(m Message)

// Message is one unit of work: Handler is called with the message itself.
type Message struct {
	Handler Handler
	Event   int
	Arg     int
}

// Bus is a bounded FIFO of messages.
type Bus struct {
	ch  chan Message
	log logrus.FieldLogger
}

// New returns a bus holding up to size pending messages.
func New(size int, log logrus.FieldLogger) *Bus {
	if size <= 0 {
		size = DefaultSize
	}
	if log == nil {
		log = logrus.WithField("tag", "msgbus")
	}
	return &Bus{ch: make(chan Message, size), log: log}
}

// Put queues m without blocking.
func (b *Bus) Put(m Message) error {
	select {
	case b.ch <- m:
		return nil
	default:
		return ErrFull
	}
}

// Len is the number of pending messages.
func (b *Bus) Len() int {
	return len(b.ch)
}

// Poll runs the messages pending at the time of the call and returns how
// many ran. Messages queued by a handler wait for the next Poll.
func (b *Bus) Poll() int {
	n := len(b.ch)
	for i := 0; i < n; i++ {
		select {
		case m := <-b.ch:
			b.dispatch(m)
		default:
			return i
		}
	}
	return n
}

// Run runs messages as they arrive until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-b.ch:
			b.dispatch(m)
		}
	}
}

func (b *Bus) dispatch(m Message) {
	if m.Handler == nil {
		b.log.WithField("event", m.Event).Debug("message without handler dropped")
		return
	}
	m.Handler(m)
}
