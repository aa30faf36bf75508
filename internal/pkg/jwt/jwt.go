package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims identifies the tenant a management API call acts for. Tokens are
// minted by the account system upstream; this service only verifies them.
type Claims struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id,omitempty"`
	jwtlib.RegisteredClaims
}

func GenerateToken(orgID, userID string, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		OrgID:  orgID,
		UserID: userID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.OrgID == "" {
		return nil, errors.New("token carries no org")
	}
	return claims, nil
}
