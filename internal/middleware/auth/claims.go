package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of the accessToken cookie issued by the auth service.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the caller resolved from the session. It is the only source of the user id.
type Identity struct {
	UserID uint
	Role   string
}

var ErrNoSubject = errors.New("token has no usable subject")

func identityFromClaims(claims *AccessClaims) (Identity, error) {
	if claims == nil || claims.Subject == "" {
		return Identity{}, ErrNoSubject
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Identity{}, ErrNoSubject
	}
	return Identity{UserID: uint(id), Role: claims.Role}, nil
}

// SignAccessToken mints an HS256 access token in the auth service's format.
func SignAccessToken(secret []byte, userID uint, role string, ttl time.Duration) (string, error) {
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
