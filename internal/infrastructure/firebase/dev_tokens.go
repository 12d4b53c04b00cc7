package firebase

import (
	"context"
	"errors"
	"strings"
)

const devTokenPrefix = "dev-"

// DevTokenVerifier accepts tokens of the form "dev-<uid>". It is only wired
// when the service runs without Firebase in development.
type DevTokenVerifier struct{}

func (DevTokenVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	uid := strings.TrimPrefix(token, devTokenPrefix)
	if uid == token || strings.TrimSpace(uid) == "" {
		return "", errors.New("not a development token")
	}
	return uid, nil
}

// DevToken builds a token DevTokenVerifier will accept.
func DevToken(uid string) string {
	return devTokenPrefix + uid
}
