// Package processors provides the built-in quote pre and post processors.
package processors

import (
	"context"
	"math"

	"github.com/tournevent/shipquote/pkg/shipping"
)

const earthRadiusKm = 6371.0

// Distance stores the great-circle distance between origin and delivery,
// in km, as the quote's distance information. Addresses without
// coordinates leave the quote untouched.
type Distance struct{}

// NewDistance creates the distance pre-processor.
func NewDistance() *Distance {
	return &Distance{}
}

// Code returns the processor code.
func (d *Distance) Code() string {
	return shipping.DistancePreProcessorCode
}

// Process computes the distance.
func (d *Distance) Process(_ context.Context, qc *shipping.QuoteContext) error {
	from, to := qc.Origin.Address, qc.Delivery
	if !from.HasCoordinates() || !to.HasCoordinates() {
		return nil
	}
	if qc.Quote.Informations == nil {
		qc.Quote.Informations = make(map[string]any)
	}
	qc.Quote.Informations[shipping.InfoDistance] = Haversine(*from.Latitude, *from.Longitude, *to.Latitude, *to.Longitude)
	return nil
}

// Haversine returns the great-circle distance in km between two points
// given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

var _ shipping.Processor = (*Distance)(nil)
