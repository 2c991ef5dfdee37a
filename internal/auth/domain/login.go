package domain

// LoginResult is the outcome of a password or second-factor step. Exactly one
// of AccessToken or TempToken is set on success.
type LoginResult struct {
	AccessToken string
	User        *Profile

	TwoFactorRequired bool
	TempToken         string
	Methods           []TwoFactorMethod
}
