package auth

import "time"

// Profile roles.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User represents an authenticated user account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	ConfirmedAt  *time.Time
}

// Confirmed reports whether the user proved ownership of the e-mail address.
func (u User) Confirmed() bool {
	return u.ConfirmedAt != nil
}

// Profile carries the role and display name attached to a user.
type Profile struct {
	ID       string
	Role     string
	FullName string
}

// HasDashboardRole reports whether the role may open the dashboard.
func (p Profile) HasDashboardRole() bool {
	return p.Role == RoleAdmin || p.Role == RoleClient
}

// NewUser is the input for creating an account. Confirmed skips the e-mail
// confirmation step; only operator-created admins set it.
type NewUser struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	Confirmed    bool
}

// ConfirmationEmail is the message that carries the confirmation link.
type ConfirmationEmail struct {
	To       string
	FullName string
	Link     string
}

// Subject line of the confirmation e-mail.
func (m ConfirmationEmail) Subject() string {
	return "Confirm your SS Insurance account"
}

// Body renders the plain-text confirmation e-mail.
func (m ConfirmationEmail) Body() string {
	name := m.FullName
	if name == "" {
		name = "there"
	}
	return "Hello " + name + ",\n\n" +
		"Please confirm your e-mail address to finish setting up your account:\n\n" +
		m.Link + "\n\n" +
		"The link expires in 48 hours. If you did not sign up, ignore this message.\n"
}
