package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePredicates(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAgent.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())

	assert.False(t, RoleUser.IsStaff())
	assert.True(t, RoleAgent.IsStaff())
	assert.True(t, RoleAdmin.IsStaff())
}

func TestCanReadTicket(t *testing.T) {
	ticket := &Ticket{ID: "t1", CreatedBy: "u1"}

	owner := &Principal{ID: "u1", Role: RoleUser}
	stranger := &Principal{ID: "u2", Role: RoleUser}
	staff := &Principal{ID: "a1", Role: RoleAgent}

	assert.True(t, owner.CanReadTicket(ticket))
	assert.False(t, stranger.CanReadTicket(ticket))
	assert.True(t, staff.CanReadTicket(ticket))

	assert.False(t, owner.CanManageTicket())
	assert.True(t, staff.CanManageTicket())
}

func TestEnumValidity(t *testing.T) {
	for _, status := range []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed} {
		assert.True(t, status.Valid(), string(status))
	}
	assert.False(t, TicketStatus("paused").Valid())

	for _, priority := range []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent} {
		assert.True(t, priority.Valid(), string(priority))
	}
	assert.False(t, TicketPriority("critical").Valid())

	assert.True(t, VoteUpvote.Valid())
	assert.True(t, VoteDownvote.Valid())
	assert.False(t, VoteDirection("sideways").Valid())
}
