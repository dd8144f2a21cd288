package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func SignAccessToken(userID uint, username string, admin bool, accessSecret []byte, exp time.Time) (string, error) {
	claims := AccessClaims{
		Username: username,
		Admin:    admin,
		Version:  ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(accessSecret)
}

func AccessClaimsFromToken(tokenStr string, accessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return accessSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid access token")
	}
	return &claims, nil
}
