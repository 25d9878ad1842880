package mailer

import (
	"fmt"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

// SMTPMailer delivers via a plain SMTP server, which in development is
// usually Mailpit.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPMailer(host string, port int, from, fromName, user, pass string) *SMTPMailer {
	return &SMTPMailer{
		dialer:   gomail.NewDialer(strings.TrimSpace(host), port, strings.TrimSpace(user), strings.TrimSpace(pass)),
		from:     strings.TrimSpace(from),
		fromName: strings.TrimSpace(fromName),
	}
}

func (s *SMTPMailer) SendConfirmationEmail(toEmail, toName, confirmURL, token string) error {
	subject := "Confirm your PerkPoint account"
	text := fmt.Sprintf("Please confirm your email by clicking this link: %s\n\nOr use this confirmation code: %s", confirmURL, token)
	html := fmt.Sprintf(`
		<h2>Welcome to PerkPoint!</h2>
		<p>Hi %s,</p>
		<p>Please confirm your email address by clicking the link below:</p>
		<p><a href="%s" style="background-color: #2E6BE6; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Confirm Email</a></p>
		<p>Or use this confirmation code: <strong>%s</strong></p>
		<p>This link will expire in 2 hours.</p>
		<p>If you didn't create an account with us, please ignore this email.</p>
	`, toName, confirmURL, token)

	return s.sendEmail(toEmail, toName, subject, text, html)
}

func (s *SMTPMailer) SendPasswordResetEmail(toEmail, toName, resetURL, token string) error {
	subject := "Reset your PerkPoint password"
	text := fmt.Sprintf("We received a request to reset your password. Use this link: %s\n\nOr use this reset code: %s\n\nThe link expires in 1 hour and can only be used once.", resetURL, token)
	html := fmt.Sprintf(`
		<h2>Password Reset</h2>
		<p>Hi %s,</p>
		<p>We received a request to reset your password. Click the link below to choose a new one:</p>
		<p><a href="%s" style="background-color: #2E6BE6; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Password</a></p>
		<p>This link will expire in 1 hour and can only be used once.</p>
		<p>If you didn't request a reset, you can safely ignore this email.</p>
	`, toName, resetURL)

	return s.sendEmail(toEmail, toName, subject, text, html)
}

func (s *SMTPMailer) sendEmail(toEmail, toName, subject, text, html string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return fmt.Errorf("empty recipient email")
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.from, s.fromName)
	msg.SetAddressHeader("To", toEmail, toName)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)

	return s.dialer.DialAndSend(msg)
}
