// README: Conversation engine: intent routing and the dialogue state machine.
package advisor

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"traveladvisor/internal/ai"
	"traveladvisor/internal/chat"
	"traveladvisor/internal/maps"
	"traveladvisor/internal/messages"
	"traveladvisor/internal/types"
)

// LocationResolver resolves free-text place descriptions to zero, one, or
// many geocoded candidates.
type LocationResolver interface {
	Resolve(ctx context.Context, text string) ([]maps.Place, error)
}

// TravelMetrics measures current distance and (traffic-adjusted) duration
// between two geocoded points.
type TravelMetrics interface {
	Measure(ctx context.Context, origin, destination types.Point) (maps.Estimate, error)
}

// Notifier delivers outbound messages to a conversation.
type Notifier interface {
	Send(ctx context.Context, channel types.ID, text string) error
}

// IdentityLookup resolves a user id to a display name.
type IdentityLookup interface {
	DisplayName(ctx context.Context, userID types.ID) (string, error)
}

// IntentClassifier maps free text to an intent label.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (ai.Intent, error)
}

// Service drives the per-user dialogue: it consumes inbound messages,
// advances the session state machine, and hands finished requests to the
// recheck scheduler.
type Service struct {
	store      *Store
	resolver   LocationResolver
	metrics    TravelMetrics
	notifier   Notifier
	identity   IdentityLookup
	classifier IntentClassifier // nil means no backend: every message classifies as none
	scheduler  *Scheduler
	catalog    *messages.Catalog

	qmu    sync.Mutex
	queues map[types.ID]chan chat.InboundMessage
}

// Deps bundles the collaborators for NewService.
type Deps struct {
	Store      *Store
	Resolver   LocationResolver
	Metrics    TravelMetrics
	Notifier   Notifier
	Identity   IdentityLookup
	Classifier IntentClassifier
	Scheduler  *Scheduler
	Catalog    *messages.Catalog
}

func NewService(d Deps) *Service {
	return &Service{
		store:      d.Store,
		resolver:   d.Resolver,
		metrics:    d.Metrics,
		notifier:   d.Notifier,
		identity:   d.Identity,
		classifier: d.Classifier,
		scheduler:  d.Scheduler,
		catalog:    d.Catalog,
		queues:     make(map[types.ID]chan chat.InboundMessage),
	}
}

// Run consumes the inbound stream until ctx is cancelled or the stream
// closes. Messages are dispatched to per-user queues: one user's messages
// are handled strictly in arrival order, while a slow geocode or traffic
// call for one user never stalls another's conversation.
func (s *Service) Run(ctx context.Context, inbound <-chan chat.InboundMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			s.dispatch(ctx, msg)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, msg chat.InboundMessage) {
	s.qmu.Lock()
	q, ok := s.queues[msg.UserID]
	if !ok {
		q = make(chan chat.InboundMessage, 16)
		s.queues[msg.UserID] = q
		go s.drainUser(ctx, q)
	}
	s.qmu.Unlock()

	select {
	case q <- msg:
	default:
		log.Printf("advisor: queue full, dropping message from %s", msg.UserID)
	}
}

func (s *Service) drainUser(ctx context.Context, q <-chan chat.InboundMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q:
			s.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage processes a single inbound message: classify, then route by
// intent or, for unclassified text, by the user's current stage.
func (s *Service) HandleMessage(ctx context.Context, msg chat.InboundMessage) {
	intent := s.classify(ctx, msg.Text)

	// Greetings never touch session state.
	if intent == ai.IntentGreeting {
		s.send(ctx, msg.Channel, s.catalog.Get("SAY_HELLO"))
		return
	}

	lock := s.store.UserLock(msg.UserID)
	lock.Lock()
	defer lock.Unlock()

	switch intent {
	case ai.IntentLeaveQuery:
		s.handleLeaveQuery(ctx, msg)
	case ai.IntentCancelRequest:
		s.handleCancel(ctx, msg)
	default:
		s.handleStageInput(ctx, msg)
	}
}

// classify degrades to IntentNone when no backend is configured or the
// backend fails; the engine keeps working on stage-routed input alone.
func (s *Service) classify(ctx context.Context, text string) ai.Intent {
	if s.classifier == nil {
		return ai.IntentNone
	}
	intent, err := s.classifier.Classify(ctx, text)
	if err != nil {
		log.Printf("advisor: classify: %v", err)
		return ai.IntentNone
	}
	return intent
}

func (s *Service) handleLeaveQuery(ctx context.Context, msg chat.InboundMessage) {
	if sess := s.store.Get(msg.UserID); sess != nil && sess.Request != nil {
		// An outstanding request: report its last known state, change nothing.
		reply := s.catalog.Get("EXISTING_REQUEST")
		if !sess.Request.DurationInTraffic.Zero() {
			reply += s.catalog.Get("CURRENT_TRAVEL_TIME", sess.Request.DurationInTraffic.Text)
		}
		s.send(ctx, msg.Channel, reply)
		return
	}

	name, err := s.identity.DisplayName(ctx, msg.UserID)
	if err != nil {
		log.Printf("advisor: display name for %s: %v", msg.UserID, err)
		s.send(ctx, msg.Channel, s.catalog.Get("UNKOWN_USER"))
		return
	}

	sess := &UserSession{
		UserID:      msg.UserID,
		DisplayName: name,
		Stage:       StageRequestStarted,
		Request:     NewTravelRequest(msg.UserID, msg.Channel),
	}
	s.store.Put(sess)
	s.send(ctx, msg.Channel, fmt.Sprintf("%s %s",
		s.catalog.Get("DETECTED_WHEN_SHOULD_I_LEAVE"), s.catalog.Get("ORIGIN")))
}

func (s *Service) handleCancel(ctx context.Context, msg chat.InboundMessage) {
	if s.store.Get(msg.UserID) == nil {
		s.send(ctx, msg.Channel, s.catalog.Get("UNKOWN_COMMAND"))
		return
	}
	s.store.Remove(msg.UserID)
	s.send(ctx, msg.Channel, s.catalog.Get("REQUEST_CANCELLED"))
}

func (s *Service) handleStageInput(ctx context.Context, msg chat.InboundMessage) {
	sess := s.store.Get(msg.UserID)
	if sess == nil {
		s.send(ctx, msg.Channel, s.catalog.Get("UNKOWN_COMMAND"))
		return
	}

	switch sess.Stage {
	case StageRequestStarted:
		s.resolveOrigin(ctx, sess, msg)
	case StageOriginSupplied:
		s.selectOrigin(ctx, sess, msg)
	case StageOriginSelected:
		s.resolveDestination(ctx, sess, msg)
	case StageDestinationSupplied:
		s.selectDestination(ctx, sess, msg)
	case StageDestinationSelected:
		s.setTargetDuration(ctx, sess, msg)
	default:
		s.send(ctx, msg.Channel, s.catalog.Get("UNKOWN_COMMAND"))
	}
}

func (s *Service) resolveOrigin(ctx context.Context, sess *UserSession, msg chat.InboundMessage) {
	places, err := s.resolver.Resolve(ctx, msg.Text)
	if err != nil {
		log.Printf("advisor: resolve origin: %v", err)
		s.send(ctx, msg.Channel, s.catalog.Get("SERVICE_ERROR"))
		return
	}
	switch len(places) {
	case 0:
		s.send(ctx, msg.Channel, s.catalog.Get("NO_LOCATION_FOUND"))
	case 1:
		sess.Request.Origin = &places[0]
		sess.Stage = StageOriginSelected
		s.send(ctx, msg.Channel, s.catalog.Get("DESTINATION"))
	default:
		sess.Origins = places
		sess.Stage = StageOriginSupplied
		s.send(ctx, msg.Channel, s.catalog.Get("CHOOSE_LOCATION", formatCandidates(places)))
	}
}

func (s *Service) selectOrigin(ctx context.Context, sess *UserSession, msg chat.InboundMessage) {
	idx, ok := parseSelection(msg.Text, len(sess.Origins))
	if !ok {
		s.send(ctx, msg.Channel, s.catalog.Get("SELECTION_OUT_OF_BOUNDS", len(sess.Origins)))
		return
	}
	sess.Request.Origin = &sess.Origins[idx-1]
	sess.Origins = nil
	sess.Stage = StageOriginSelected
	s.send(ctx, msg.Channel, s.catalog.Get("DESTINATION"))
}

func (s *Service) resolveDestination(ctx context.Context, sess *UserSession, msg chat.InboundMessage) {
	places, err := s.resolver.Resolve(ctx, msg.Text)
	if err != nil {
		log.Printf("advisor: resolve destination: %v", err)
		s.send(ctx, msg.Channel, s.catalog.Get("SERVICE_ERROR"))
		return
	}
	switch len(places) {
	case 0:
		// The origin is already locked in, so the user is re-prompted for a
		// destination rather than restarted.
		s.send(ctx, msg.Channel, s.catalog.Get("NO_LOCATION_FOUND"))
	case 1:
		sess.Request.Destination = &places[0]
		sess.Stage = StageDestinationSelected
		s.reportTravelAndAskTarget(ctx, sess, msg.Channel)
	default:
		sess.Destinations = places
		sess.Stage = StageDestinationSupplied
		s.send(ctx, msg.Channel, s.catalog.Get("CHOOSE_LOCATION", formatCandidates(places)))
	}
}

func (s *Service) selectDestination(ctx context.Context, sess *UserSession, msg chat.InboundMessage) {
	idx, ok := parseSelection(msg.Text, len(sess.Destinations))
	if !ok {
		s.send(ctx, msg.Channel, s.catalog.Get("SELECTION_OUT_OF_BOUNDS", len(sess.Destinations)))
		return
	}
	sess.Request.Destination = &sess.Destinations[idx-1]
	sess.Destinations = nil
	sess.Stage = StageDestinationSelected
	s.reportTravelAndAskTarget(ctx, sess, msg.Channel)
}

// reportTravelAndAskTarget fetches the first measurement so the target
// prompt carries current traffic context.
func (s *Service) reportTravelAndAskTarget(ctx context.Context, sess *UserSession, channel types.ID) {
	if err := sess.Request.refresh(ctx, s.metrics); err != nil {
		log.Printf("advisor: initial travel check: %v", err)
		s.send(ctx, channel, s.catalog.Get("SERVICE_ERROR"))
		return
	}
	s.send(ctx, channel, fmt.Sprintf("%s\n%s",
		s.catalog.Get("CURRENT_TRAVEL_TIME", sess.Request.DurationInTraffic.Text),
		s.catalog.Get("TARGET_DURATION")))
}

func (s *Service) setTargetDuration(ctx context.Context, sess *UserSession, msg chat.InboundMessage) {
	minutes, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || minutes <= 0 {
		s.send(ctx, msg.Channel, s.catalog.Get("TARGET_DURATION"))
		return
	}

	req := sess.Request
	req.TargetDuration = minutes * 60
	sess.Stage = StageRunning

	if err := req.CheckCurrentTravel(ctx, s.metrics); err != nil {
		// The measurement failed but the request is live; the scheduler
		// retries on its own cadence.
		log.Printf("advisor: immediate travel check: %v", err)
		s.send(ctx, msg.Channel, s.catalog.Get("SERVICE_ERROR"))
		s.scheduler.Schedule(req)
		return
	}

	if req.TargetMet() {
		s.send(ctx, msg.Channel, s.catalog.Get("YOU_CAN_LEAVE_NOW",
			req.Destination.Address, req.DurationInTraffic.Text))
		s.store.Remove(sess.UserID)
		return
	}

	s.send(ctx, msg.Channel, fmt.Sprintf("%s\n%s",
		s.catalog.Get("CURRENT_TRAVEL_TIME", req.DurationInTraffic.Text),
		s.catalog.Get("I_WILL_NOTIFY", minutes)))
	s.scheduler.Schedule(req)
}

func (s *Service) send(ctx context.Context, channel types.ID, text string) {
	if err := s.notifier.Send(ctx, channel, text); err != nil {
		log.Printf("advisor: send to %s: %v", channel, err)
	}
}

// parseSelection validates a 1-based candidate index. Only strings parseable
// as an integer within [1, n] are accepted.
func parseSelection(text string, n int) (int, bool) {
	k, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || k < 1 || k > n {
		return 0, false
	}
	return k, true
}

func formatCandidates(places []maps.Place) string {
	var b strings.Builder
	for i, p := range places {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, p.Address)
	}
	return b.String()
}
