package domain

const (
	MethodTOTP = "totp"
	MethodFace = "face_id"
)

// TwoFactorMethod is one entry of the second-factor picker shown after login.
type TwoFactorMethod struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// TOTPSetup is returned when a user starts authenticator enrollment.
type TOTPSetup struct {
	Secret  string // Base32 encoded secret
	URI     string // otpauth:// URL for QR code generation
	Issuer  string
	Account string
}
