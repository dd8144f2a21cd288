package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClaimsVersion is bumped whenever the claim schema changes, so tokens issued
// under an older schema can be told apart from current ones.
const ClaimsVersion = 1

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

type AccessClaims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	Version  int    `json:"v"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	TokenType string `json:"typ"`
	Version   int    `json:"v"`
	jwt.RegisteredClaims
}

func NewJTI() string { return uuid.NewString() }
