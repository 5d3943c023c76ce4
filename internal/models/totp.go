package models

import (
	"github.com/pquerna/otp/totp"
)

// VerifyTOTPCode verifies a TOTP code against a secret
func VerifyTOTPCode(secret, code string) bool {
	return totp.Validate(code, secret)
}

// CheckSecondFactor passes users without 2FA and otherwise requires a valid code.
func (u *User) CheckSecondFactor(code string) bool {
	if !u.TOTPEnabled {
		return true
	}
	return u.TOTPSecret != "" && VerifyTOTPCode(u.TOTPSecret, code)
}
