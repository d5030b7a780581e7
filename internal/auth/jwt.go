package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in the token.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Token types carried in the typ claim. Only access tokens authorize requests.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	RefreshID    string    `json:"-"`
	AccessExp    time.Time `json:"expires_at"`
	RefreshExp   time.Time `json:"-"`
}

// Claims represents JWT payload. Subject is the identity's roll number.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	Type    string `json:"typ"`
	jwt.RegisteredClaims
}

// Principal returns the immutable request identity carried by the claims.
func (c Claims) Principal() Principal {
	return Principal{Subject: c.Subject, Role: c.Role}
}

// Issue issues signed access and refresh tokens. The refresh token carries a jti so it can be
// stored and revoked.
func Issue(subject, role, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)
	refreshID := uuid.NewString()

	accessClaims := Claims{
		Subject: subject,
		Role:    role,
		Type:    TokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(accessExp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	refreshClaims := Claims{
		Subject: subject,
		Role:    role,
		Type:    TokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refreshID,
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(key))
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(key))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RefreshID:    refreshID,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// ParseAs validates a token and requires its typ claim to equal typ.
func ParseAs(tokenStr, key, issuer, typ string) (Claims, error) {
	claims, err := Parse(tokenStr, key, issuer)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != typ {
		return Claims{}, errors.New("wrong token type")
	}
	return claims, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
