package domain

import "time"

// Customer is owned by the customer directory. Order creation only needs to
// know that it exists.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
