// Package sweeper runs the periodic task that moves stale active
// reservations to expired and returns their held units to the free
// pool.
package sweeper

import (
	"context"
	"sort"
	"sync"
	"time"

	"reservation-core/internal/metrics"
	"reservation-core/internal/models"
	"reservation-core/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("reservation-core/sweeper")

const defaultBatchLimit = 200

type Sweeper struct {
	repo     *repository.Repository
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time

	running  sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func New(repo *repository.Repository, log *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Sweeper{
		repo:     repo,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs one cycle immediately, then ticks on the configured
// interval until Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("starting expiry sweeper", zap.Duration("interval", s.interval))
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runCycle(ctx)
			case <-s.stopCh:
				s.log.Info("expiry sweeper stopped")
				return
			case <-ctx.Done():
				s.log.Info("expiry sweeper cancelled")
				return
			}
		}
	}()
}

// Stop cancels the next scheduled cycle and waits for any in-flight
// cycle to finish.
func (s *Sweeper) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
}

// RunOnceNow runs a single cycle synchronously, for tests and manual
// invocation. It returns immediately without running if a cycle is
// already in flight.
func (s *Sweeper) RunOnceNow(ctx context.Context) {
	s.runCycle(ctx)
}

func (s *Sweeper) runCycle(ctx context.Context) {
	if !s.running.TryLock() {
		metrics.SweeperCycleSkippedTotal.Inc()
		s.log.Debug("sweep cycle already in flight, skipping tick")
		return
	}
	defer s.running.Unlock()

	ctx, span := tracer.Start(ctx, "sweeper.Cycle")
	defer span.End()

	metrics.SweeperCyclesTotal.Inc()

	batch, err := s.repo.Reservations.ListExpiredBatch(ctx, s.now(), defaultBatchLimit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.SweeperErrorsTotal.Inc()
		s.log.Error("sweep cycle failed to list expired reservations", zap.Error(err))
		return
	}

	var expired, released int
	for _, res := range batch {
		units, transitioned, err := s.sweepOne(ctx, res)
		if err != nil {
			metrics.SweeperErrorsTotal.Inc()
			s.log.Error("sweep of reservation failed", zap.Error(err), zap.String("reservation_id", res.ID.String()))
			continue
		}
		if !transitioned {
			continue
		}
		expired++
		released += units
	}

	metrics.SweeperReservationsExpiredTotal.Add(float64(expired))
	metrics.SweeperUnitsReleasedTotal.Add(float64(released))
	s.log.Info("sweep cycle complete", zap.Int("reservations_expired", expired), zap.Int("units_released", released))
}

// sweepOne expires one reservation and releases its lines in a single
// transaction, returning the units actually released. It reports
// false, releasing nothing, when the reservation has already left the
// active state (e.g. a confirm won).
func (s *Sweeper) sweepOne(ctx context.Context, res models.Reservation) (int, bool, error) {
	var transitioned bool
	var released int
	err := s.repo.WithTx(func(tx *repository.Repository) error {
		ok, err := tx.Reservations.TransitionState(ctx, res.ID, models.ReservationExpired)
		if err != nil || !ok {
			return err
		}
		transitioned = true

		lines := make([]models.ReservationLine, len(res.Lines))
		copy(lines, res.Lines)
		sort.Slice(lines, func(i, j int) bool {
			return lines[i].ProductID.String() < lines[j].ProductID.String()
		})

		for _, l := range lines {
			ok, err := tx.Inventories.ReleaseReserved(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				s.log.Warn("release guard failed, skipping line",
					zap.String("reservation_id", res.ID.String()),
					zap.String("product_id", l.ProductID.String()),
					zap.Int32("quantity", l.Quantity))
				continue
			}
			released += int(l.Quantity)
		}
		return nil
	})
	return released, transitioned, err
}
