package crypto

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the user id, role and the permission names granted at
// issue time. Downstream components never look at the role; they check
// permission names only.
type Claims struct {
	Sub   string   `json:"sub"`
	Role  string   `json:"role"`
	Perms []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, userID, role string, perms []string, ttl time.Duration) (string, error) {
	c := Claims{
		Sub:   userID,
		Role:  role,
		Perms: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString([]byte(secret))
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := t.Claims.(*Claims); ok && t.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
