// Package broadcast sends one message to every known account and reports
// how many deliveries succeeded.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fleepgift/coinledger/internal/infra/logging"
	"github.com/fleepgift/coinledger/internal/infra/metrics"
)

const DefaultConcurrency = 8

// Message is delivered with a single URL button underneath.
type Message struct {
	Text        string
	ButtonLabel string
	URL         string
}

type Sender interface {
	Send(ctx context.Context, userID int64, msg Message) error
}

type Directory interface {
	AccountIDs(ctx context.Context) ([]int64, error)
}

type Report struct {
	RunID     string
	Total     int
	Delivered int64
	Failed    int64
	Duration  time.Duration
}

type Dispatcher struct {
	dir         Directory
	sender      Sender
	concurrency int
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func NewDispatcher(dir Directory, sender Sender, concurrency int, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Dispatcher{
		dir:         dir,
		sender:      sender,
		concurrency: concurrency,
		metrics:     m,
		log:         logging.Or(log).With("component", "broadcast"),
	}
}

// Run attempts one delivery per account in a snapshot of the directory.
// A failed delivery is counted and logged, never retried, and never stops
// the run. Run only fails when the snapshot cannot be taken.
func (d *Dispatcher) Run(ctx context.Context, msg Message) (Report, error) {
	ids, err := d.dir.AccountIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("broadcast snapshot: %w", err)
	}

	rep := Report{RunID: uuid.NewString(), Total: len(ids)}
	log := d.log.With("run_id", rep.RunID)
	log.InfoContext(ctx, "broadcast started", "recipients", rep.Total)

	start := time.Now()

	var delivered, failed atomic.Int64

	g := &errgroup.Group{}
	g.SetLimit(d.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			err := d.sender.Send(ctx, id, msg)
			if err != nil {
				failed.Add(1)
				d.metrics.BroadcastResult(false)
				log.WarnContext(ctx, "broadcast delivery failed", "user_id", id, "err", err)

				return nil
			}

			delivered.Add(1)
			d.metrics.BroadcastResult(true)

			return nil
		})
	}

	_ = g.Wait()

	rep.Delivered = delivered.Load()
	rep.Failed = failed.Load()
	rep.Duration = time.Since(start)

	log.InfoContext(ctx, "broadcast finished",
		"delivered", rep.Delivered, "failed", rep.Failed, "duration", rep.Duration)

	return rep, nil
}
