package models

// User is a console user as returned by /auth/user, /auth/login and /users.
type User struct {
	Sub      string `json:"sub"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
	Profile  string `json:"profile,omitempty"`
}

// UnknownUser is used when the current user's profile cannot be read.
func UnknownUser() *User {
	return &User{Name: "Unknown User"}
}
