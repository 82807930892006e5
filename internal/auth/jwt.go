package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleSuperAdmin may act on devices of every organization
const RoleSuperAdmin = "superadmin"

const defaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the claims in an operator token
type Claims struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Elevated reports whether the token holder may cross organization boundaries
func (c *Claims) Elevated() bool {
	return c.Role == RoleSuperAdmin
}

// TokenManager signs and validates HS256 operator tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: defaultTokenTTL}
}

// GenerateUserToken generates a JWT token for an operator
func (m *TokenManager) GenerateUserToken(userID, organizationID, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	return claims, nil
}
