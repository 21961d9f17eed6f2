package credentials

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

// TokenClaims are the claims the chat backend puts into its tokens.
type TokenClaims struct {
	UserName string `json:"usr_name"`
	jwt.RegisteredClaims
}

// UserName decodes the token without verifying its signature and returns the
// usr_name claim, falling back to the subject.
func UserName(token string) (string, error) {
	var claims TokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.UserName != "" {
		return claims.UserName, nil
	}
	return claims.Subject, nil
}
