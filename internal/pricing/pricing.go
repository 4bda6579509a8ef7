// Package pricing turns trip metrics into the driver pay / platform profit /
// customer total split. Everything here is pure.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

const (
	BaseFare   = 3.50
	PerKmRate  = 0.70
	PerMinRate = 0.10

	// PlatformFeeRate is the markup the platform adds on top of driver pay.
	// It is the only knob in the delivery fee split.
	PlatformFeeRate = 0.20

	// RestaurantCommissionRate is the share of a restaurant's food subtotal
	// owed to the platform.
	RestaurantCommissionRate = 0.15
)

var ErrInvalidMetric = errors.New("invalid trip metric")

// InvalidMetricError reports a negative or non-finite pricing input.
type InvalidMetricError struct {
	Field string
	Value float64
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("invalid trip metric %s=%v", e.Field, e.Value)
}

func (e *InvalidMetricError) Is(target error) bool { return target == ErrInvalidMetric }

type Quote struct {
	DriverPay      float64 `json:"driver_pay"`
	PlatformProfit float64 `json:"platform_profit"`
	CustomerTotal  float64 `json:"customer_total"`
}

// Price computes the fare split for one delivery leg.
func Price(distanceKm, durationMin float64) (Quote, error) {
	if err := checkMetric("distance_km", distanceKm); err != nil {
		return Quote{}, err
	}
	if err := checkMetric("duration_min", durationMin); err != nil {
		return Quote{}, err
	}
	pay := Round2(BaseFare + PerKmRate*distanceKm + PerMinRate*durationMin)
	profit := Round2(pay * PlatformFeeRate)
	return Quote{
		DriverPay:      pay,
		PlatformProfit: profit,
		CustomerTotal:  Round2(pay + profit),
	}, nil
}

// SplitRestaurantRevenue divides a food subtotal into what the restaurant
// keeps and the commission it owes the platform. net+commission == subtotal.
func SplitRestaurantRevenue(subtotal float64) (net, commission float64, err error) {
	if err := checkMetric("subtotal", subtotal); err != nil {
		return 0, 0, err
	}
	subtotal = Round2(subtotal)
	commission = Round2(subtotal * RestaurantCommissionRate)
	return Round2(subtotal - commission), commission, nil
}

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func checkMetric(field string, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidMetricError{Field: field, Value: v}
	}
	return nil
}
