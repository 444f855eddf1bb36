package model

// User is the authenticated account as returned by the auth endpoints.
type User struct {
	ID    ID      `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
}

// DisplayName returns the user's name, falling back to the email.
func (u User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

// SignupInput is the body of POST /api/auth/signup.
type SignupInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

// LoginInput is the body of POST /api/auth/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is the data payload of a successful signup or login.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
