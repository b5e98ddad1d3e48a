// README: Travel request aggregate, user session, and dialogue stage definitions.
package advisor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"traveladvisor/internal/maps"
	"traveladvisor/internal/types"
)

// Stage is the discrete step of a user's multi-turn dialogue.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageRequestStarted       Stage = "request_started"
	StageOriginSupplied       Stage = "origin_supplied"
	StageOriginSelected       Stage = "origin_selected"
	StageDestinationSupplied  Stage = "destination_supplied"
	StageDestinationSelected  Stage = "destination_selected"
	StageRunning              Stage = "running"
)

// AllowedTransitions represents the dialogue flow (diagram) as code.
// Cancellation is not a stage: it removes the session from any of these.
var AllowedTransitions = map[Stage][]Stage{
	StageIdle:           {StageRequestStarted},
	StageRequestStarted: {StageOriginSupplied, StageOriginSelected},
	StageOriginSupplied: {StageOriginSelected},
	// Ambiguous destination input forks to a selection step; an
	// unambiguous one skips straight to selected.
	StageOriginSelected:      {StageDestinationSupplied, StageDestinationSelected},
	StageDestinationSupplied: {StageDestinationSelected},
	StageDestinationSelected: {StageRunning},
}

func CanTransition(from, to Stage) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// TravelRequest tracks one in-flight journey query and its most recent
// measurement. Origin, Destination, and TargetDuration are immutable once
// set; Counter increments exactly once per successful metrics check.
type TravelRequest struct {
	ID          types.ID
	UserID      types.ID
	Channel     types.ID
	Origin      *maps.Place
	Destination *maps.Place

	// TargetDuration is the travel time in seconds the user wants to
	// achieve before departing. 0 means not yet supplied.
	TargetDuration int

	Distance          types.Metric
	Duration          types.Metric
	DurationInTraffic types.Metric

	Counter     int
	LastChecked time.Time
}

// NewTravelRequest creates a request bound to the conversation it came from.
func NewTravelRequest(userID, channel types.ID) *TravelRequest {
	return &TravelRequest{
		ID:      newID(),
		UserID:  userID,
		Channel: channel,
	}
}

// refresh issues one metrics query and records the result.
func (r *TravelRequest) refresh(ctx context.Context, metrics TravelMetrics) error {
	r.LastChecked = time.Now()
	r.Counter++
	est, err := metrics.Measure(ctx, r.Origin.Location, r.Destination.Location)
	if err != nil {
		return err
	}
	r.Distance = est.Distance
	r.Duration = est.Duration
	r.DurationInTraffic = est.DurationInTraffic
	return nil
}

// CheckCurrentTravel refreshes the measurement for a request that is being
// monitored. When no target duration was supplied, the freshly measured
// no-traffic duration becomes the target. That is defensive only: a
// monitored request has its target set before the first check. The context
// fetch during the dialogue uses refresh directly, so asking for the target
// with traffic context never locks one in.
func (r *TravelRequest) CheckCurrentTravel(ctx context.Context, metrics TravelMetrics) error {
	if err := r.refresh(ctx, metrics); err != nil {
		return err
	}
	if r.TargetDuration == 0 {
		r.TargetDuration = r.Duration.Value
	}
	return nil
}

// TargetMet reports whether the last measured duration-in-traffic is at or
// below the target.
func (r *TravelRequest) TargetMet() bool {
	return !r.DurationInTraffic.Zero() && r.DurationInTraffic.Value <= r.TargetDuration
}

// UserSession is the per-user conversational state: where the dialogue
// stands, which disambiguation candidates are pending, and the active
// travel request.
type UserSession struct {
	UserID       types.ID
	DisplayName  string
	Stage        Stage
	Request      *TravelRequest
	Origins      []maps.Place
	Destinations []maps.Place
}

func newID() types.ID {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return types.ID(hex.EncodeToString(b))
}
