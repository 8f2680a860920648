package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the passcode does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginDisabled is returned when no teacher passcode is configured.
	ErrLoginDisabled = errors.New("teacher login is not configured")
	// ErrNotTeacher is returned for a valid token that lacks the teacher role.
	ErrNotTeacher = errors.New("token does not carry the teacher role")
)

// Service issues and checks teacher tokens.
type Service struct {
	passcodeHash string
	jwtConfig    *JWTConfig
}

// NewService creates a new authentication service. An empty passcodeHash disables Login.
func NewService(passcodeHash string, jwtConfig *JWTConfig) *Service {
	return &Service{
		passcodeHash: passcodeHash,
		jwtConfig:    jwtConfig,
	}
}

// Login checks the teacher passcode and returns a JWT carrying the teacher role.
func (s *Service) Login(passcode string) (string, error) {
	if s.passcodeHash == "" {
		return "", ErrLoginDisabled
	}
	if err := ComparePasscode(s.passcodeHash, passcode); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, RoleTeacher, RoleTeacher)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// ValidateTeacher validates a token and requires the teacher role.
func (s *Service) ValidateTeacher(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleTeacher {
		return nil, ErrNotTeacher
	}
	return claims, nil
}
