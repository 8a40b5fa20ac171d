package session

import (
	"log"
	"time"

	"github.com/golang-jwt/jwt"
)

// attachableToken returns tok unless it is a JWT whose expiry claim
// has already passed. The claim is inspected without verification;
// validating the signature is the server's job. Opaque non-JWT tokens
// pass through untouched.
func attachableToken(tok string, logger *log.Logger) string {
	if tok == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(tok, claims); err != nil {
		return tok
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return tok
	}
	if time.Now().After(time.Unix(int64(exp), 0)) {
		logger.Println("auth token expired; authenticating without it")
		return ""
	}

	return tok
}
