package gateway

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/logger"
)

const defaultJWTSecret = "fallback_secret_change_in_production"

// getJWTSecret retrieves the JWT secret from environment variable or configuration
func getJWTSecret() string {
	// First try environment variable
	if envSecret := os.Getenv("MUKUVI_JWT_SECRET"); envSecret != "" {
		return envSecret
	}

	// Fallback to configuration file
	secret := configuration.GetString("Authentication", "jwt_secret", defaultJWTSecret)
	if secret == defaultJWTSecret {
		logger.AuthWarn("Using fallback JWT secret - set MUKUVI_JWT_SECRET environment variable for production!")
	}
	return secret
}

// getTokenExpiration retrieves the token expiration duration from configuration
func getTokenExpiration() time.Duration {
	hours := configuration.GetInt("Authentication", "token_expiration_hours", 24)
	return time.Duration(hours) * time.Hour
}

// SessionClaims are the claims of a login token. The session id binds the
// token to one in-memory session.
type SessionClaims struct {
	SessionID string `json:"sid"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateSessionToken creates a signed token for a fresh session.
func GenerateSessionToken(sessionID, username string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "mukuvios",
			Subject:   username,
			ID:        sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(getJWTSecret()))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signedToken, nil
}

// ValidateSessionToken parses and verifies a login token.
func ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(getJWTSecret()), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}
	return claims, nil
}
