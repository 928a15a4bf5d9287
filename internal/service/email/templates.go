package email

import "fmt"

// ReservationConfirmationBody builds the guest-facing confirmation email.
func ReservationConfirmationBody(restaurantName, customerName, date, timeOfDay, code string, partySize int) (subject, body string) {
	subject = fmt.Sprintf("Your reservation at %s is confirmed", restaurantName)
	body = fmt.Sprintf(`
		<h2>Reservation confirmed</h2>
		<p>Hi %s,</p>
		<p>Your table for <b>%d</b> at <b>%s</b> is booked for <b>%s</b> at <b>%s</b>.</p>
		<p>Your confirmation code:</p>
		<p class="code">%s</p>
		<p>Quote this code if you call to change or cancel your booking.</p>
	`, customerName, partySize, restaurantName, date, timeOfDay, code)
	return subject, body
}

// ReservationCancellationBody builds the guest-facing cancellation notice.
func ReservationCancellationBody(restaurantName, customerName, date, timeOfDay, code string) (subject, body string) {
	subject = fmt.Sprintf("Your reservation at %s was cancelled", restaurantName)
	body = fmt.Sprintf(`
		<h2>Reservation cancelled</h2>
		<p>Hi %s,</p>
		<p>Your reservation <b>%s</b> at <b>%s</b> for %s at %s has been cancelled.</p>
		<p>We hope to see you another time.</p>
	`, customerName, code, restaurantName, date, timeOfDay)
	return subject, body
}

// InvitationBody builds the organization invitation email with its accept
// link.
func InvitationBody(organizationName, role, acceptURL string) (subject, body string) {
	subject = fmt.Sprintf("You have been invited to join %s", organizationName)
	body = fmt.Sprintf(`
		<h2>Team invitation</h2>
		<p>You have been invited to join <b>%s</b> as a <b>%s</b>.</p>
		<p><a class="button" href="%s">Accept invitation</a></p>
		<p>This invitation expires in 7 days.</p>
	`, organizationName, role, acceptURL)
	return subject, body
}
