package domain

// Status is the lifecycle state of an order or sub-order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// statusRank orders the forward progression. Cancelled sits outside the
// progression and is handled separately.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo implements the regular progression: one step forward at a
// time, with Cancelled reachable only from Pending or Confirmed. Admin
// corrections are handled separately by the transition service.
func CanTransitionTo(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return from == StatusPending || from == StatusConfirmed
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank == fromRank+1
}

// DeriveOrderStatus computes the parent order status from its sub-order
// statuses: Cancelled only when everything is cancelled, otherwise the
// least-advanced status among the non-cancelled sub-orders.
func DeriveOrderStatus(subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return StatusPending
	}

	minRank := -1
	for _, s := range subStatuses {
		if s == StatusCancelled {
			continue
		}
		r := statusRank[s]
		if minRank == -1 || r < minRank {
			minRank = r
		}
	}
	if minRank == -1 {
		return StatusCancelled
	}

	for s, r := range statusRank {
		if r == minRank {
			return s
		}
	}
	return StatusPending
}
