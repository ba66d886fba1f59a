package services

import (
	"errors"
	"fmt"
	"time"

	"places-backend/internal/apperror"
	"places-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	authFailedMessage = "Authentication failed!"
	defaultTokenTTL   = time.Hour
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
)

// Claims are the JWT claims issued to users
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies bearer tokens signed with a process-wide secret
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// GenerateToken generates a signed token for a user
func (s *TokenService) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken verifies the signature and expiry of a token and returns the
// caller identity. All failures are authentication errors.
func (s *TokenService) ValidateToken(tokenString string) (models.Identity, error) {
	if tokenString == "" {
		return models.Identity{}, apperror.Authentication(authFailedMessage, ErrTokenInvalid)
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, apperror.Authentication(authFailedMessage, ErrTokenExpired)
		}
		return models.Identity{}, apperror.Authentication(authFailedMessage, fmt.Errorf("%w: %v", ErrTokenInvalid, err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return models.Identity{}, apperror.Authentication(authFailedMessage, ErrTokenInvalid)
	}

	return models.Identity{UserID: claims.UserID}, nil
}
