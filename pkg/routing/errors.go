package routing

import (
	"errors"
	"fmt"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/geo"
)

var (
	// ErrNoRoute is returned when no route exists between the two nodes.
	ErrNoRoute = errors.New("no route found")

	// ErrGeometry is returned when the geometry collaborator fails or returns
	// fewer than two points. It is a kind of ErrNoRoute.
	ErrGeometry = fmt.Errorf("%w: routing geometry unavailable", ErrNoRoute)

	ErrNoTarget    = errors.New("no destination selected")
	ErrNoOrigin    = errors.New("no origin selected")
	ErrSameNode    = errors.New("origin and destination are the same node")
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidCoordinates is shared with package geo.
	ErrInvalidCoordinates = geo.ErrInvalidCoordinates

	ErrNoAddress        = errors.New("empty address")
	ErrOutOfRegion      = errors.New("location outside the service region")
	ErrGeocoderDisabled = errors.New("geocoding is not configured")

	// ErrPointTooFar is returned when the query point is too far from any facility.
	ErrPointTooFar = errors.New("point too far from any facility")

	// ErrSuperseded is reported by a request that a newer one of the same
	// session replaced before it finished.
	ErrSuperseded = errors.New("request superseded by a newer one")

	// ErrInternal marks a broken internal invariant, never bad input.
	ErrInternal = errors.New("internal routing error")
)

// IsInputError reports whether err was caused by the request itself.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrNoTarget, ErrNoOrigin, ErrSameNode, ErrUnknownNode,
		ErrInvalidCoordinates, ErrNoAddress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
