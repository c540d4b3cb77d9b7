package notify

import (
	"context"
	"time"

	"github.com/room4-2/concierge/metrics"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

type Kind string

const (
	KindRoomService Kind = "room_service"
	KindTicket      Kind = "ticket"
)

// Event is one outbound message emitted by the tool dispatcher.
type Event struct {
	Kind    Kind
	To      string
	Message string
}

const sendTimeout = 10 * time.Second

// Dispatcher decouples notification delivery from the call turn. Publish never
// blocks; Run delivers on a bounded worker pool.
type Dispatcher struct {
	sender  Sender
	events  chan Event
	workers int
	metrics *metrics.Metrics
}

func NewDispatcher(sender Sender, workers, buffer int, m *metrics.Metrics) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		sender:  sender,
		events:  make(chan Event, buffer),
		workers: workers,
		metrics: m,
	}
}

// Publish queues an event. It reports false, and drops the event, when the
// queue is full or the event has no destination.
func (d *Dispatcher) Publish(e Event) bool {
	if e.To == "" {
		return false
	}
	select {
	case d.events <- e:
		return true
	default:
		log.Warn().Str("kind", string(e.Kind)).Msg("⚠️ Notification queue full, dropping")
		d.metrics.RecordNotification("dropped")
		return false
	}
}

// Run delivers events until ctx is done, then flushes what is already queued.
func (d *Dispatcher) Run(ctx context.Context) {
	p := pool.New().WithMaxGoroutines(d.workers)
	defer p.Wait()

	for {
		select {
		case <-ctx.Done():
			d.drain(p)
			return
		case e := <-d.events:
			p.Go(func() { d.deliver(e) })
		}
	}
}

func (d *Dispatcher) drain(p *pool.Pool) {
	for {
		select {
		case e := <-d.events:
			p.Go(func() { d.deliver(e) })
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, e.To, e.Message); err != nil {
		log.Error().Err(err).Str("kind", string(e.Kind)).Msg("❌ Notification failed")
		d.metrics.RecordNotification("failed")
		return
	}
	d.metrics.RecordNotification("sent")
}
