package domain

import (
	"fmt"
	"math"
)

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Validate rejects non-finite or out-of-range coordinates
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidValue, c.Lat)
	}
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidValue, c.Lng)
	}
	return nil
}

// ValidatePath checks that a route path has at least two valid points
func ValidatePath(path []Coordinate) error {
	if len(path) < 2 {
		return fmt.Errorf("%w: path needs at least 2 points, got %d", ErrMissingRequiredField, len(path))
	}
	for i, c := range path {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("path[%d]: %w", i, err)
		}
	}
	return nil
}
