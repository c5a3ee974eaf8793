package request

// SignupRequest is the request body for creating an account
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for logging in. Either username or
// email identifies the account.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Identifier returns the email if present, otherwise the username
func (r LoginRequest) Identifier() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Username
}
