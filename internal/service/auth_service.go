package service

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"voxpop/internal/config"
	"voxpop/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService handles survey-owner authentication and session resume tokens.
type AuthService struct {
	ownerUsername string
	ownerPassword string
	jwtSecret     []byte
	resumeTTL     time.Duration
}

func NewAuthService(cfg *config.AuthConfig) *AuthService {
	username := os.Getenv("OWNER_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("OWNER_PASSWORD")
	if password == "" {
		password = "password123"
	}

	return &AuthService{
		ownerUsername: username,
		ownerPassword: password,
		jwtSecret:     []byte(cfg.JWTSecret),
		resumeTTL:     time.Duration(cfg.ResumeTokenTTLHours) * time.Hour,
	}
}

// Login validates credentials and returns an owner token.
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if username != s.ownerUsername || password != s.ownerPassword {
		return nil, ErrInvalidCredentials
	}

	ownerID := "owner_" + uuid.New().String()[:8]

	claims := &model.OwnerClaims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token:   tokenString,
		OwnerID: ownerID,
	}, nil
}

// ValidateOwnerToken validates an owner JWT and returns claims.
func (s *AuthService) ValidateOwnerToken(tokenString string) (*model.OwnerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.OwnerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.OwnerClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateResumeToken creates the signed token a paused session hands back to
// the respondent.
func (s *AuthService) GenerateResumeToken(sessionToken string) (string, error) {
	claims := &model.ResumeClaims{
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.resumeTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateResumeToken validates a resume JWT and returns the session token.
func (s *AuthService) ValidateResumeToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.ResumeClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.ResumeClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	return claims.SessionToken, nil
}
