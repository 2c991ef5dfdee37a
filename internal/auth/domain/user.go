package domain

import "time"

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string // argon2id, or bcrypt for imported accounts

	// TOTPSecret is the sealed (AES-GCM) base32 secret. Nil until setup starts.
	TOTPSecret  []byte
	TOTPEnabled bool
	FaceEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the user view returned alongside a final credential.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	TOTPEnabled bool   `json:"totpEnabled"`
	FaceEnabled bool   `json:"faceEnabled"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		TOTPEnabled: u.TOTPEnabled,
		FaceEnabled: u.FaceEnabled,
	}
}

// RequiresSecondFactor reports whether a password alone is not enough.
func (u User) RequiresSecondFactor() bool {
	return u.TOTPEnabled || u.FaceEnabled
}

// SecondFactorMethods lists the enabled methods in display order.
func (u User) SecondFactorMethods() []TwoFactorMethod {
	methods := make([]TwoFactorMethod, 0, 2)
	if u.TOTPEnabled {
		methods = append(methods, TwoFactorMethod{Type: MethodTOTP, Name: "Authenticator App"})
	}
	if u.FaceEnabled {
		methods = append(methods, TwoFactorMethod{Type: MethodFace, Name: "Face ID"})
	}
	return methods
}
