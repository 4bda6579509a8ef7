package delivery

import (
	"errors"
	"fmt"

	"github.com/example/delivery-dispatch/internal/models"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrAddressNotFound   = errors.New("address not found")
	ErrOutOfRange        = errors.New("address outside delivery radius")
	ErrNotSubscribed     = errors.New("driver subscription inactive")
	ErrNotAssigned       = errors.New("order is assigned to another driver")
	ErrAlreadyRated      = errors.New("order already rated")
	ErrInvalidTransition = errors.New("invalid order transition")
)

// TransitionError reports an order lifecycle move that its current status
// does not allow.
type TransitionError struct {
	OrderID string
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// OutOfRangeError carries the straight-line distance that failed the
// delivery radius check.
type OutOfRangeError struct {
	DistanceKm float64
	RadiusKm   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("address is %.2f km away, delivery radius is %.2f km", e.DistanceKm, e.RadiusKm)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// allowed lists the lifecycle edges: pending -> accepted -> completed, and
// pending|accepted -> cancelled.
var allowed = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:  {models.OrderAccepted, models.OrderCancelled},
	models.OrderAccepted: {models.OrderCompleted, models.OrderCancelled},
}

func checkTransition(o *models.Order, to models.OrderStatus) error {
	for _, s := range allowed[o.Status] {
		if s == to {
			return nil
		}
	}
	return &TransitionError{OrderID: o.ID, From: o.Status, To: to}
}
