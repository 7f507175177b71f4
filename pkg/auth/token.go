package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// clockSkew tolerates small drift between the identity provider and us.
const clockSkew = 30 * time.Second

var (
	ErrMissingShopper = errors.New("token missing user_id")
	errNoSecret       = errors.New("jwt secret is required")
)

// AccessTokenPayload is what MintAccessToken needs to issue a token.
type AccessTokenPayload struct {
	ShopperID uuid.UUID
	JTI       string
}

// AccessTokenClaims is the shopper bearer token. The identity provider puts
// the shopper id under user_id and mirrors it into sub.
type AccessTokenClaims struct {
	ShopperID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

func keyFunc(cfg config.JWTConfig) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}
}

// MintAccessToken signs an HS256 token for payload. Live shoppers get their
// tokens from the identity provider; this serves tests and local tooling.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errNoSecret
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case payload.ShopperID == uuid.Nil:
		return "", ErrMissingShopper
	}

	id := strings.TrimSpace(payload.JTI)
	if id == "" {
		id = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		ShopperID: payload.ShopperID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    cfg.Issuer,
			Subject:   payload.ShopperID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry and returns the claims.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, keyFunc(cfg)); err != nil {
		return nil, err
	}
	if claims.ShopperID == uuid.Nil {
		return nil, ErrMissingShopper
	}
	return claims, nil
}
