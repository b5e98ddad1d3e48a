// README: Bounded delayed re-polling of running travel requests.
package advisor

import (
	"context"
	"log"
	"time"

	"traveladvisor/internal/config"
	"traveladvisor/internal/messages"
	"traveladvisor/internal/types"
)

// fireTimeout bounds the downstream calls made by a single firing.
const fireTimeout = 30 * time.Second

// Scheduler re-measures a running travel request on a fixed delay until the
// target is met, the check budget runs out, or the user cancels. Requests
// are re-validated against the store by id on every firing: holding a
// reference is not proof the request is still live.
type Scheduler struct {
	store    *Store
	metrics  TravelMetrics
	notifier Notifier
	catalog  *messages.Catalog

	delay     time.Duration
	maxChecks int
}

func NewScheduler(store *Store, metrics TravelMetrics, notifier Notifier, catalog *messages.Catalog, cfg config.RecheckConfig) *Scheduler {
	return &Scheduler{
		store:     store,
		metrics:   metrics,
		notifier:  notifier,
		catalog:   catalog,
		delay:     cfg.Delay,
		maxChecks: cfg.MaxChecks(),
	}
}

// Schedule arranges one firing for the request after the configured delay.
// Each firing arms the next one only after it completes, so firings for the
// same request never overlap.
func (s *Scheduler) Schedule(req *TravelRequest) {
	time.AfterFunc(s.delay, func() { s.fire(req) })
}

func (s *Scheduler) fire(req *TravelRequest) {
	lock := s.store.UserLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	// Liveness check: the session may have been cancelled, or replaced by a
	// newer request, between scheduling and firing. Either way this firing
	// must not act or reschedule.
	if s.store.ActiveRequestID(req.UserID) != req.ID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	if req.Counter >= s.maxChecks {
		s.send(ctx, req.Channel, s.catalog.Get("TIME_EXCEEDED"))
		s.store.Remove(req.UserID)
		return
	}

	if err := req.CheckCurrentTravel(ctx, s.metrics); err != nil {
		// Non-fatal: the counter already advanced, so the budget still
		// terminates the loop.
		log.Printf("advisor: recheck %s: %v", req.ID, err)
		s.Schedule(req)
		return
	}

	if req.TargetMet() {
		s.send(ctx, req.Channel, s.catalog.Get("YOU_CAN_LEAVE_NOW",
			req.Destination.Address, req.DurationInTraffic.Text))
		s.store.Remove(req.UserID)
		return
	}

	s.Schedule(req)
}

func (s *Scheduler) send(ctx context.Context, channel types.ID, text string) {
	if err := s.notifier.Send(ctx, channel, text); err != nil {
		log.Printf("advisor: notify %s: %v", channel, err)
	}
}
