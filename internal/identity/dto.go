package identity

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
	Message  string `json:"message,omitempty"`
}

type meResponse struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func toAuthResponse(s Session, message string) AuthResponse {
	return AuthResponse{
		UserID:   s.UserID,
		Username: s.Username,
		Email:    s.Email,
		Token:    s.Token,
		Message:  message,
	}
}
