package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidStatus(t *testing.T) {
	for _, st := range AllStatuses {
		assert.True(t, ValidStatus(st), string(st))
	}
	assert.False(t, ValidStatus("reserved"))
	assert.False(t, ValidStatus(""))
	assert.False(t, ValidStatus("Available"), "statuses are case sensitive")
}

func TestCanTransitionCoversFullMatrix(t *testing.T) {
	allowed := map[[2]SeatStatus]bool{
		{StatusAvailable, StatusHeld}:     true,
		{StatusAvailable, StatusBlocked}:  true,
		{StatusAvailable, StatusDisabled}: true,
		{StatusHeld, StatusSold}:          true,
		{StatusHeld, StatusAvailable}:     true,
		{StatusHeld, StatusDisabled}:      true,
		{StatusSold, StatusDisabled}:      true,
		{StatusBlocked, StatusAvailable}:  true,
		{StatusBlocked, StatusDisabled}:   true,
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[[2]SeatStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestDisabledIsTerminal(t *testing.T) {
	for _, to := range AllStatuses {
		assert.False(t, CanTransition(StatusDisabled, to), "disabled -> %s", to)
	}
}

func TestCanTransitionUnknownStates(t *testing.T) {
	assert.False(t, CanTransition("bogus", StatusHeld))
	assert.False(t, CanTransition(StatusAvailable, "bogus"))
	assert.False(t, CanTransition(StatusAvailable, StatusAvailable), "identity transitions are rejected")
}
