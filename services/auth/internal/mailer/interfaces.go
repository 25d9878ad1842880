package mailer

// Sender delivers the transactional emails the auth flows produce.
// Implementations must not log or persist the raw token beyond what
// delivery requires.
type Sender interface {
	SendConfirmationEmail(toEmail, toName, confirmURL, token string) error
	SendPasswordResetEmail(toEmail, toName, resetURL, token string) error
}
