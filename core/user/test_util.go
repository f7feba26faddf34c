package user

import "github.com/intigym/backoffice/core"

// MakeResetToken returns the password reset token the service would email to usr.
// Used by tests of the packages driving the reset flow.
func MakeResetToken(conf *core.Config, usr User) (string, error) {
	return newTokenGenerator(conf).makeToken(usr)
}
