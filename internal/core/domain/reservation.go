package domain

import "time"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusSuccess   ReservationStatus = "success"
	StatusCancelled ReservationStatus = "cancelled"
)

// Terminal reports whether the status is a final settlement state.
func (s ReservationStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusCancelled
}

// Reservation records one requester's intent to buy a fixed quantity of one
// product at a price frozen at request time. The ID equals the identity of
// the ticket channel backing the purchase.
type Reservation struct {
	ID         string
	Requester  string
	Product    string
	Quantity   int
	UnitPrice  int64
	TotalPrice int64
	Status     ReservationStatus
	CreatedAt  time.Time
	ResolvedBy string
	ResolvedAt time.Time
}
