// README: Common value objects shared across modules.
package types

import "fmt"

// ID identifies a user, channel, or travel request.
type ID string

// Point is a geocoded coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Metric is a measurement as reported by the routing provider:
// a human-readable text plus a numeric value (meters for distance,
// seconds for durations).
type Metric struct {
	Text  string
	Value int
}

// Zero reports whether the metric was never recorded.
func (m Metric) Zero() bool {
	return m.Text == "" && m.Value == 0
}
