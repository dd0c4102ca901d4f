// Package delivery hands access codes to an SMS gateway without making the
// caller wait. Each code is queued, rate limited per phone and retried with
// exponential backoff on a background worker.
package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/userholder/internal/holder/metrics"
	"github.com/aussiebroadwan/userholder/pkg/cryptox"
	"github.com/aussiebroadwan/userholder/pkg/idx"
	"github.com/aussiebroadwan/userholder/pkg/slogx"
	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	QueueSize     int           // Buffered jobs before Send starts dropping (default: 256)
	Timeout       time.Duration // Per attempt gateway timeout (default: 5s)
	MaxRetries    int           // Retries after the first attempt (default: 3)
	RetryInterval time.Duration // Initial backoff interval (default: 200ms)
	PerMinute     int           // Codes per phone per minute (default: 5)
	Burst         int           // Burst per phone (default: 5)
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 200 * time.Millisecond
	}
	if c.PerMinute <= 0 {
		c.PerMinute = 5
	}
	if c.Burst <= 0 {
		c.Burst = c.PerMinute
	}
	return c
}

type job struct {
	id    idx.ID
	phone string
	code  string
}

// Dispatcher implements domain.Sender on top of a Gateway.
type Dispatcher struct {
	Gateway Gateway
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	cfg     Config
	limiter *phoneLimiter
	jobs    chan job

	// lifecycle orders Send against Stop: a code enqueued under the read
	// lock is always seen by the final drain.
	lifecycle sync.RWMutex
	started   bool
	stopped   bool

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewDispatcher(gw Gateway, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		Gateway: gw,
		Logger:  logger,
		Metrics: m,
		cfg:     cfg,
		limiter: newPhoneLimiter(cfg.PerMinute, cfg.Burst),
		jobs:    make(chan job, cfg.QueueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the background worker. Call Stop to shut it down.
func (d *Dispatcher) Start() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if d.started || d.stopped {
		return
	}
	d.started = true
	go d.run()
	d.Logger.Info("access code dispatcher started", "queue_size", d.cfg.QueueSize)
}

// Stop refuses new codes, delivers whatever is already queued and waits for
// the worker to exit.
func (d *Dispatcher) Stop() {
	d.lifecycle.Lock()
	wasStopped, started := d.stopped, d.started
	d.stopped = true
	d.lifecycle.Unlock()

	if wasStopped || !started {
		return
	}

	close(d.stopCh)
	<-d.doneCh
	d.Logger.Info("access code dispatcher stopped")
}

// Send queues a code for delivery and returns immediately. A full queue or a
// stopped dispatcher drops the code.
func (d *Dispatcher) Send(phone, code string) {
	j := job{id: idx.New(), phone: phone, code: code}

	if reason := d.enqueue(j); reason != "" {
		d.drop(j, reason)
	}
}

func (d *Dispatcher) enqueue(j job) string {
	d.lifecycle.RLock()
	defer d.lifecycle.RUnlock()

	if d.stopped {
		return "dispatcher stopped"
	}
	select {
	case d.jobs <- j:
		return ""
	default:
		return "queue full"
	}
}

func (d *Dispatcher) drop(j job, reason string) {
	d.Logger.Warn("access code dropped",
		slog.String("job_id", j.id.String()),
		slog.String("reason", reason),
	)
	d.Metrics.Delivery(metrics.OutcomeDropped)
}

func (d *Dispatcher) run() {
	defer close(d.doneCh)

	for {
		select {
		case j := <-d.jobs:
			d.handle(j)
		case <-d.stopCh:
			for {
				select {
				case j := <-d.jobs:
					d.handle(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) handle(j job) {
	ctx := slogx.With(slogx.WithContext(context.Background(), d.Logger),
		slog.String("job_id", j.id.String()),
		slog.String("code_fp", cryptox.FingerprintToken(j.code)),
	)
	log := slogx.FromContext(ctx)

	if !d.limiter.allow(j.phone) {
		log.Warn("access code throttled", slog.String("phone", j.phone))
		d.Metrics.Delivery(metrics.OutcomeThrottled)
		return
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.RetryInterval
	policy.MaxElapsedTime = 0 // bounded by MaxRetries instead

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
		return d.Gateway.Deliver(attemptCtx, j.phone, j.code)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(d.cfg.MaxRetries)), ctx))

	if err != nil {
		log.Error("access code delivery failed",
			slog.Int("attempts", attempts),
			slog.Any("error", err),
		)
		d.Metrics.Delivery(metrics.OutcomeFailed)
		return
	}

	log.Debug("access code delivered", slog.Int("attempts", attempts))
	d.Metrics.Delivery(metrics.OutcomeOK)
}
