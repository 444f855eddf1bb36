package service

import (
	"context"

	"github.com/nhle/taskpilot/internal/model"
)

// AuthService covers account creation and login. Token refresh is handled
// inside the API client.
type AuthService struct {
	api Requester
}

// NewAuthService creates an AuthService.
func NewAuthService(api Requester) *AuthService {
	return &AuthService{api: api}
}

// Signup creates an account and returns the user with a fresh token.
func (s *AuthService) Signup(ctx context.Context, in model.SignupInput) (*model.AuthResult, error) {
	var out model.AuthResult
	if err := s.api.Post(ctx, "/api/auth/signup", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token.
func (s *AuthService) Login(ctx context.Context, in model.LoginInput) (*model.AuthResult, error) {
	var out model.AuthResult
	if err := s.api.Post(ctx, "/api/auth/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
