package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/smallbiznis/fieldops/internal/config"
	obsmetrics "github.com/smallbiznis/fieldops/internal/observability/metrics"
	"github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 256
	defaultWorkers   = 2
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrStopped   = errors.New("notification dispatcher stopped")
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Sender  Sender
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Dispatcher hands accepted transitions to a fixed pool of workers. Enqueue
// never blocks; a full queue is reported to the caller instead.
type Dispatcher struct {
	log     *zap.Logger
	sender  Sender
	metrics *obsmetrics.Metrics
	workers int

	mu      sync.RWMutex
	queue   chan Message
	stopped bool
	wg      sync.WaitGroup
}

var _ domain.NotificationDispatcher = (*Dispatcher)(nil)

func NewDispatcher(p Params) *Dispatcher {
	size := p.Config.Notify.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	workers := p.Config.Notify.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Dispatcher{
		log:     p.Log.Named("notify.dispatcher"),
		sender:  p.Sender,
		metrics: p.Metrics,
		workers: workers,
		queue:   make(chan Message, size),
	}
}

func (d *Dispatcher) OnStatusChange(ctx context.Context, svc domain.ServiceOrder, from, to domain.Status) error {
	return d.Enqueue(ctx, Message{
		ServiceID:         svc.ID,
		From:              from,
		To:                to,
		TechnicianID:      svc.TechnicianID,
		BusinessPartnerID: svc.BusinessPartnerID,
	})
}

func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		d.metrics.RecordNotification(ctx, d.sender.Name(), "queue_full")
		return ErrQueueFull
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Stop refuses new messages and waits for queued ones to drain.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx := context.Background()
	if err := d.sender.Send(ctx, msg); err != nil {
		d.log.Warn("notification delivery failed",
			zap.String("service_id", msg.ServiceID.String()),
			zap.String("channel", d.sender.Name()),
			zap.Error(err),
		)
		d.metrics.RecordNotification(ctx, d.sender.Name(), "failed")
		return
	}
	d.metrics.RecordNotification(ctx, d.sender.Name(), "sent")
}
