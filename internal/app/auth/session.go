/*
Package auth establishes and caches the authentication credential used by every
other component: the Session.

This file defines the Session struct and its construction from a server-issued
JWT. The client holds no signing secret, so the token is parsed without
verification purely to recover the user identity and expiry embedded in it.
*/
package auth

import (
	"time"

	"github.com/golang-jwt/jwt"

	"blobparty/internal/pkg/errs"
)

// Session is the authentication credential representing a logged-in user.
// All authenticated calls carry its Token.
type Session struct {
	// Token is the opaque credential presented to the server.
	Token string

	// UserID is the unique identifier of the authenticated user.
	UserID string

	// Username is the display name of the authenticated user.
	Username string

	// ExpiresAt is the instant after which the token is no longer accepted.
	ExpiresAt time.Time
}

// Expired reports whether the session is absent or past its expiry.
func (s *Session) Expired() bool {
	return s == nil || time.Now().After(s.ExpiresAt)
}

// sessionFromToken builds a Session from a server-issued JWT without verifying
// its signature. The server is the authority on validity; the client only
// needs the identity claims (uid, usn) and the expiry (exp).
func sessionFromToken(token string) (*Session, *errs.CustomError) {
	claims := jwt.MapClaims{}

	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, errs.NewError(errs.ErrTransportUnavailable, "server issued an unreadable session token")
	}

	userID, _ := claims["uid"].(string)
	username, _ := claims["usn"].(string)
	expiry, _ := claims["exp"].(float64)

	if userID == "" || expiry == 0 {
		return nil, errs.NewError(errs.ErrTransportUnavailable, "session token is missing identity claims")
	}

	return &Session{
		Token:     token,
		UserID:    userID,
		Username:  username,
		ExpiresAt: time.Unix(int64(expiry), 0),
	}, nil
}
