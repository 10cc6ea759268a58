package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest    = errors.New("invalid order request")
	ErrCustomerNotFound  = errors.New("could not find any customer with the given id")
	ErrNoProductsFound   = errors.New("could not find any products with the given ids")
	ErrProductsNotFound  = errors.New("could not find product(s)")
	ErrInsufficientStock = errors.New("quantity not available for product(s)")

	ErrOrderNotFound      = errors.New("order not found")
	ErrInvariantViolation = errors.New("order invariant violated")
)

// ValidationError is an expected business-rule failure. Err is one of the
// sentinels above; ProductIDs lists the offending products in request order.
type ValidationError struct {
	Err        error
	ProductIDs []string
	Detail     string
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.ProductIDs) > 0 && e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Err, e.Detail, strings.Join(e.ProductIDs, ", "))
	case len(e.ProductIDs) > 0:
		return fmt.Sprintf("%s: %s", e.Err, strings.Join(e.ProductIDs, ", "))
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Err, e.Detail)
	default:
		return e.Err.Error()
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AsValidation unwraps err into a *ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
