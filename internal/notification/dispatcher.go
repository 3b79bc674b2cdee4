package notification

import (
	"context"
	"sync"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/metrics"

	"go.uber.org/zap"
)

const sendTimeout = 15 * time.Second

type job struct {
	msg   Message
	enqAt time.Time
}

// Dispatcher sends emails from a bounded queue on a fixed pool of workers.
// Enqueue never blocks; a full queue drops the message.
type Dispatcher struct {
	sender Sender
	ch     chan job
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		sender: sender,
		ch:     make(chan job, queueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches the workers and returns a stop func that lets them finish
// what is queued until ctx expires.
func (d *Dispatcher) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(d.stopCh) })

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
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case j := <-d.ch:
			d.deliver(j)
		case <-d.stopCh:
			for {
				select {
				case j := <-d.ch:
					d.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	log := logger.L().With(
		zap.String("kind", string(j.msg.Kind)),
		zap.String("order_id", j.msg.OrderPublicID),
	)

	email, err := Render(j.msg)
	if err == nil {
		err = d.sender.Send(ctx, email)
	}
	metrics.RecordNotification(string(j.msg.Kind), err)

	if err != nil {
		log.Error("notification failed", zap.Error(err))
		return
	}
	log.Info("notification sent", zap.Duration("queued_for", time.Since(j.enqAt)))
}

// Enqueue hands msg to the workers and reports whether it was accepted.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) bool {
	if msg.To == "" {
		logger.FromCtx(ctx).Warn("notification skipped, no recipient",
			zap.String("order_id", msg.OrderPublicID))
		return false
	}

	select {
	case d.ch <- job{msg: msg, enqAt: time.Now()}:
		return true
	default:
		metrics.RecordDroppedNotification(string(msg.Kind))
		logger.FromCtx(ctx).Warn("notification queue full, drop",
			zap.String("kind", string(msg.Kind)),
			zap.String("order_id", msg.OrderPublicID),
		)
		return false
	}
}

func (d *Dispatcher) QueueLen() int { return len(d.ch) }
