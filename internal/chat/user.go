package chat

import "strings"

type User struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email,omitempty"`
	Avatar      string       `json:"avatar,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Credentials identify the account by email or by username.
type Credentials struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// Registration is the profile submitted on sign up. Confirm never leaves the client.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"-"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

type ProfileUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	Confirm         string `json:"-"`
}

// NewCredentials treats identifier as an email when it contains "@", otherwise as a username.
func NewCredentials(identifier, password string) Credentials {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return Credentials{Email: identifier, Password: password}
	}
	return Credentials{Username: identifier, Password: password}
}
