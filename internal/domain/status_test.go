package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, s.Valid(), "expected %s to be valid", s)
	}
	assert.False(t, Status("UNKNOWN").Valid())
	assert.False(t, Status("").Valid())
}

func TestCanTransitionTo_ForwardProgression(t *testing.T) {
	assert.True(t, CanTransitionTo(StatusPending, StatusConfirmed))
	assert.True(t, CanTransitionTo(StatusConfirmed, StatusShipped))
	assert.True(t, CanTransitionTo(StatusShipped, StatusDelivered))
}

func TestCanTransitionTo_NoSkipping(t *testing.T) {
	assert.False(t, CanTransitionTo(StatusPending, StatusShipped))
	assert.False(t, CanTransitionTo(StatusPending, StatusDelivered))
	assert.False(t, CanTransitionTo(StatusConfirmed, StatusDelivered))
}

func TestCanTransitionTo_NoBackwards(t *testing.T) {
	assert.False(t, CanTransitionTo(StatusConfirmed, StatusPending))
	assert.False(t, CanTransitionTo(StatusShipped, StatusConfirmed))
	assert.False(t, CanTransitionTo(StatusDelivered, StatusShipped))
}

func TestCanTransitionTo_Cancellation(t *testing.T) {
	assert.True(t, CanTransitionTo(StatusPending, StatusCancelled))
	assert.True(t, CanTransitionTo(StatusConfirmed, StatusCancelled))

	// Shipped goods can no longer be cancelled.
	assert.False(t, CanTransitionTo(StatusShipped, StatusCancelled))
}

func TestCanTransitionTo_TerminalStatesAreFinal(t *testing.T) {
	for _, target := range []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.False(t, CanTransitionTo(StatusDelivered, target), "delivered -> %s should be rejected", target)
		assert.False(t, CanTransitionTo(StatusCancelled, target), "cancelled -> %s should be rejected", target)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.False(t, StatusShipped.IsTerminal())
}

func TestDeriveOrderStatus_LeastAdvancedWins(t *testing.T) {
	assert.Equal(t, StatusPending, DeriveOrderStatus([]Status{StatusPending, StatusShipped}))
	assert.Equal(t, StatusConfirmed, DeriveOrderStatus([]Status{StatusConfirmed, StatusDelivered}))
	assert.Equal(t, StatusDelivered, DeriveOrderStatus([]Status{StatusDelivered, StatusDelivered}))
}

func TestDeriveOrderStatus_CancelledSubOrdersIgnored(t *testing.T) {
	// A cancelled sub-order does not hold the rest of the order back.
	assert.Equal(t, StatusShipped, DeriveOrderStatus([]Status{StatusCancelled, StatusShipped}))
	assert.Equal(t, StatusDelivered, DeriveOrderStatus([]Status{StatusCancelled, StatusDelivered, StatusCancelled}))
}

func TestDeriveOrderStatus_AllCancelled(t *testing.T) {
	assert.Equal(t, StatusCancelled, DeriveOrderStatus([]Status{StatusCancelled, StatusCancelled}))
}

func TestDeriveOrderStatus_Empty(t *testing.T) {
	assert.Equal(t, StatusPending, DeriveOrderStatus(nil))
}
