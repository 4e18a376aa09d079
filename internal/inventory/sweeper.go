package inventory

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/venuekit/seat-inventory/internal/model"
	"github.com/venuekit/seat-inventory/internal/queue"
)

// SweepStore is the subset of the seat store the hold sweeper needs.
type SweepStore interface {
	ListStaleHeld(ctx context.Context, cutoff time.Time) (map[int64][]string, error)
	BulkTransition(ctx context.Context, layoutID int64, seatUIDs []string, from, to model.SeatStatus) (int64, error)
}

// HoldSweeper periodically returns stale held seats to available so that
// abandoned checkouts do not permanently lock inventory.  Holds carry no
// store-driven timeout of their own; a seat is considered stale when it has
// sat in held longer than the configured TTL.  The sweep drives seats back
// through the same conditional transition as everything else, so a seat
// that was sold while the sweep ran is skipped by the status predicate.
type HoldSweeper struct {
	store    SweepStore
	holdTTL  time.Duration
	interval time.Duration

	// Publish, when set, is invoked once per swept layout with the
	// resulting seat.status.changed event.  Publish failures are logged
	// and otherwise ignored; the transition has already committed.
	Publish func(ctx context.Context, ev queue.SeatStatusChangedEvent) error

	scheduler gocron.Scheduler
}

// NewHoldSweeper constructs a sweeper.  holdTTL is how long a seat may stay
// held; interval is how often the sweep runs.
func NewHoldSweeper(store SweepStore, holdTTL, interval time.Duration) *HoldSweeper {
	return &HoldSweeper{store: store, holdTTL: holdTTL, interval: interval}
}

// Start launches the background sweep schedule.  It returns an error only
// when the scheduler cannot be constructed; individual sweep failures are
// logged and retried on the next tick.
func (s *HoldSweeper) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}
	s.scheduler = sched

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			defer cancel()
			if err := s.Sweep(ctx); err != nil {
				log.Printf("hold-sweeper: sweep failed: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	sched.Start()
	log.Printf("hold-sweeper: started (ttl=%s interval=%s)", s.holdTTL, s.interval)
	return nil
}

// Stop shuts the schedule down.  Safe to call when Start never ran.
func (s *HoldSweeper) Stop() {
	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
}

// Sweep performs one pass: find every held seat older than the TTL and
// transition it back to available, layout by layout.
func (s *HoldSweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.holdTTL)
	stale, err := s.store.ListStaleHeld(ctx, cutoff)
	if err != nil {
		return err
	}
	for layoutID, seatUIDs := range stale {
		n, err := s.store.BulkTransition(ctx, layoutID, seatUIDs, model.StatusHeld, model.StatusAvailable)
		if err != nil {
			log.Printf("hold-sweeper: layout %d: release failed: %v", layoutID, err)
			continue
		}
		if n == 0 {
			continue
		}
		log.Printf("hold-sweeper: layout %d: released %d of %d stale holds", layoutID, n, len(seatUIDs))
		if s.Publish != nil {
			ev := queue.SeatStatusChangedEvent{
				EventID:    uuid.NewString(),
				LayoutID:   layoutID,
				SeatUIDs:   seatUIDs,
				FromStatus: string(model.StatusHeld),
				ToStatus:   string(model.StatusAvailable),
				Count:      n,
				Actor:      "sweeper",
				ChangedAt:  time.Now().UTC().Format(time.RFC3339),
			}
			if err := s.Publish(ctx, ev); err != nil {
				log.Printf("hold-sweeper: publish failed: %v", err)
			}
		}
	}
	return nil
}
