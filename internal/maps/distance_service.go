package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"traveladvisor/internal/types"
)

// Estimate holds one distance-matrix measurement for a journey.
type Estimate struct {
	Distance          types.Metric
	Duration          types.Metric
	DurationInTraffic types.Metric
}

// DistanceService handles interactions with the Google Distance Matrix API.
type DistanceService struct {
	client *maps.Client
}

// NewDistanceService creates a new DistanceService with the given API Key.
func NewDistanceService(apiKey string) (*DistanceService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &DistanceService{client: client}, nil
}

// Measure returns current distance, duration, and traffic-adjusted duration
// between two geocoded points. It assumes driving mode with a best-guess
// traffic model and departure now, so DurationInTraffic reflects live
// conditions.
func (s *DistanceService) Measure(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	r := &maps.DistanceMatrixRequest{
		Origins:       []string{origin.String()},
		Destinations:  []string{destination.String()},
		Mode:          maps.TravelModeDriving,
		DepartureTime: "now",
		TrafficModel:  maps.TrafficModelBestGuess,
	}

	resp, err := s.client.DistanceMatrix(ctx, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("distance matrix api error: %w", err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Estimate{}, fmt.Errorf("no route found")
	}

	elem := resp.Rows[0].Elements[0]
	if elem.Status != "OK" {
		return Estimate{}, fmt.Errorf("distance matrix element status %s", elem.Status)
	}

	est := Estimate{
		Distance: types.Metric{
			Text:  elem.Distance.HumanReadable,
			Value: elem.Distance.Meters,
		},
		Duration:          durationMetric(elem.Duration),
		DurationInTraffic: durationMetric(elem.DurationInTraffic),
	}
	if est.DurationInTraffic.Zero() {
		// The API omits duration_in_traffic for some routes; fall back to
		// the plain duration so callers always have a comparable value.
		est.DurationInTraffic = est.Duration
	}
	return est, nil
}

func durationMetric(d time.Duration) types.Metric {
	return types.Metric{
		Text:  formatDuration(d),
		Value: int(d / time.Second),
	}
}

// formatDuration renders a duration the way the Distance Matrix web API
// does ("1 hour 5 mins"), rounding up to whole minutes.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	h, m := mins/60, mins%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d mins", m)
	case h == 1 && m == 0:
		return "1 hour"
	case h == 1:
		return fmt.Sprintf("1 hour %d mins", m)
	case m == 0:
		return fmt.Sprintf("%d hours", h)
	default:
		return fmt.Sprintf("%d hours %d mins", h, m)
	}
}
