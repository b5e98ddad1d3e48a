package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"traveladvisor/internal/types"
)

// Place is one geocode candidate for a free-text place description.
type Place struct {
	Address  string      `json:"address"`
	Location types.Point `json:"location"`
}

// GeocodeService resolves free-text place descriptions via the Google
// Geocoding API.
type GeocodeService struct {
	client *maps.Client
}

// NewGeocodeService creates a new GeocodeService with the given API Key.
func NewGeocodeService(apiKey string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client}, nil
}

// Resolve returns the ordered candidate list for the description. An empty
// slice is a valid result: the text matched nothing.
func (s *GeocodeService) Resolve(ctx context.Context, text string) ([]Place, error) {
	r := &maps.GeocodingRequest{
		Address: text,
	}

	results, err := s.client.Geocode(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("geocoding api error: %w", err)
	}

	places := make([]Place, 0, len(results))
	for _, result := range results {
		places = append(places, Place{
			Address: result.FormattedAddress,
			Location: types.Point{
				Lat: result.Geometry.Location.Lat,
				Lng: result.Geometry.Location.Lng,
			},
		})
	}
	return places, nil
}
