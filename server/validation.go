package server

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MinPasswordLength is the shortest password the forms accept before any
// network call. The SSO enforces its own rules on top.
const MinPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// validateNewPassword checks the inline rules shared by register, reset
// and set-password: minimum length and confirmation match. Returns an
// empty string when the password is acceptable.
func validateNewPassword(password, confirm string) string {
	if len(password) < MinPasswordLength {
		return "Password must be at least 8 characters long"
	}
	if password != confirm {
		return "Passwords do not match"
	}
	return ""
}

var otpPattern = regexp.MustCompile(`^\d{6}$`)

func validOTPCode(code string) bool {
	return otpPattern.MatchString(code)
}

func newFormToken() string {
	return uuid.NewString()
}
