package mailer

import (
	"fmt"

	"github.com/perkpoint/loyalty-platform/pkg/logger"
)

// DevMailer prints emails to stdout instead of delivering them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendConfirmationEmail(toEmail, toName, confirmURL, token string) error {
	logger.Info("[DEV MAIL] Confirmation Email",
		"to", toEmail,
		"name", toName,
		"confirm_url", confirmURL,
	)

	fmt.Printf("\n"+
		"=================================================================\n"+
		"CONFIRMATION EMAIL (DEV MODE)\n"+
		"=================================================================\n"+
		"To: %s (%s)\n"+
		"Subject: Confirm your PerkPoint account\n"+
		"\n"+
		"Confirmation URL: %s\n"+
		"Token: %s\n"+
		"=================================================================\n\n",
		toEmail, toName, confirmURL, token)

	return nil
}

func (d *DevMailer) SendPasswordResetEmail(toEmail, toName, resetURL, token string) error {
	logger.Info("[DEV MAIL] Password Reset Email",
		"to", toEmail,
		"name", toName,
		"reset_url", resetURL,
	)

	fmt.Printf("\n"+
		"=================================================================\n"+
		"PASSWORD RESET EMAIL (DEV MODE)\n"+
		"=================================================================\n"+
		"To: %s (%s)\n"+
		"Subject: Reset your PerkPoint password\n"+
		"\n"+
		"Reset URL: %s\n"+
		"Token: %s\n"+
		"=================================================================\n\n",
		toEmail, toName, resetURL, token)

	return nil
}
