package models

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,notblank,max=200"`
}

// PasswordResetRequest is the body of POST /auth/password-reset.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginResponse carries the signed session token issued on success.
type LoginResponse struct {
	Token   string        `json:"token"`
	Account PublicAccount `json:"account"`
}

// RegisterResponse echoes the created account's public fields.
type RegisterResponse struct {
	Account PublicAccount `json:"account"`
}
