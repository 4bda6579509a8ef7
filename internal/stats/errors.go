package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/delivery-dispatch/internal/pricing"
)

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

type InvalidRatingError struct {
	Rating int
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("invalid rating %d: must be between 1 and 5", e.Rating)
}

func (e *InvalidRatingError) Is(target error) bool { return target == ErrInvalidRating }

func checkAmount(field string, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return &pricing.InvalidMetricError{Field: field, Value: v}
	}
	return nil
}
