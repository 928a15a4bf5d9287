package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservationConfirmationBody(t *testing.T) {
	subject, body := ReservationConfirmationBody("Trattoria Roma", "Ada Jones", "2026-09-12", "19:00", "4821", 2)

	assert.Equal(t, "Your reservation at Trattoria Roma is confirmed", subject)
	assert.Contains(t, body, "Ada Jones")
	assert.Contains(t, body, "4821")
	assert.Contains(t, body, "19:00")
	assert.Contains(t, body, "<b>2</b>")
}

func TestReservationCancellationBody(t *testing.T) {
	subject, body := ReservationCancellationBody("Trattoria Roma", "Ada Jones", "2026-09-12", "19:00", "4821")

	assert.Contains(t, subject, "cancelled")
	assert.Contains(t, body, "4821")
	assert.Contains(t, body, "Trattoria Roma")
}

func TestInvitationBody(t *testing.T) {
	subject, body := InvitationBody("Roma Group", "member", "https://app.example.com/invitations?token=abc")

	assert.Equal(t, "You have been invited to join Roma Group", subject)
	assert.Contains(t, body, "member")
	assert.Contains(t, body, `href="https://app.example.com/invitations?token=abc"`)
}
