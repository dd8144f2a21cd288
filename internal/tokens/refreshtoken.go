package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func SignRefreshToken(userID uint, refreshSecret []byte, exp time.Time) (string, string, error) {
	jti := NewJTI()
	claims := RefreshClaims{
		TokenType: "refresh",
		Version:   ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        jti,
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(refreshSecret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

func RefreshClaimsFromToken(tokenStr string, refreshSecret []byte) (*RefreshClaims, error) {
	var claims RefreshClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return refreshSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid refresh token")
	}
	if claims.TokenType != "refresh" {
		return nil, errors.New("not a refresh token")
	}
	return &claims, nil
}
