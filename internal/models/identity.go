package models

// Identity is the caller as vouched for by the authentication layer in front
// of the service. It is trusted as-is.
type Identity struct {
	UserID      string
	Email       string
	Name        string
	Blacklisted bool
	Admin       bool
}
