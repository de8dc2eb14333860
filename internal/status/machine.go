package status

import (
	"github.com/jkeevk/diploma-shop/internal/domain"
)

// allowed is the single permission check the state machine runs before any
// mutation. It decides both whether the transition itself is legal and
// whether this principal may trigger it.
//
// Suppliers move their own sub-orders forward one step at a time, or
// cancel them while cancellation is still possible. Customers may only
// cancel their own sub-orders while those are Pending. Admins may correct
// any non-terminal sub-order to any non-terminal status, and cancel or
// deliver along the regular rules; terminal states stay terminal even for
// admins.
func allowed(p domain.Principal, sub *domain.SubOrder, customerID string, target domain.Status) bool {
	if !target.Valid() || target == sub.Status {
		return false
	}

	switch p.Role {
	case domain.RoleSupplier:
		if p.SupplierID != sub.SupplierID {
			return false
		}
		return domain.CanTransitionTo(sub.Status, target)

	case domain.RoleCustomer:
		if p.UserID != customerID {
			return false
		}
		return target == domain.StatusCancelled && sub.Status == domain.StatusPending

	case domain.RoleAdmin:
		if sub.Status.IsTerminal() {
			return false
		}
		if target == domain.StatusCancelled || target == domain.StatusDelivered {
			return domain.CanTransitionTo(sub.Status, target)
		}
		// Corrections may skip or revert within the active statuses.
		return true

	default:
		return false
	}
}
