// Package auth encodes optional Basic credentials for the two transports the
// job service accepts: an Authorization header for request/response calls and
// an opaque query token for the event stream, which cannot carry headers.
package auth

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMalformed is returned when a header or token cannot be decoded.
var ErrMalformed = errors.New("auth: malformed credentials")

// Credentials is either Anonymous or BasicAuth.
type Credentials interface {
	isCredentials()
}

// Anonymous sends no credentials at all.
type Anonymous struct{}

// BasicAuth carries a user/password pair. Correctness is the server's concern.
type BasicAuth struct {
	User string
	Pass string
}

func (Anonymous) isCredentials() {}
func (BasicAuth) isCredentials() {}

// FromPair returns BasicAuth when either value is set and Anonymous otherwise.
func FromPair(user, pass string) Credentials {
	if user == "" && pass == "" {
		return Anonymous{}
	}
	return BasicAuth{User: user, Pass: pass}
}

// HeaderValue returns the Authorization header value for c. ok is false for
// anonymous credentials, in which case no header should be set.
func HeaderValue(c Credentials) (value string, ok bool) {
	b, ok := c.(BasicAuth)
	if !ok {
		return "", false
	}
	return "Basic " + encode(b), true
}

// QueryToken returns the value for the stream endpoint's auth query parameter.
// ok is false for anonymous credentials.
func QueryToken(c Credentials) (token string, ok bool) {
	b, ok := c.(BasicAuth)
	if !ok {
		return "", false
	}
	return encode(b), true
}

// ParseHeader decodes an Authorization header produced by HeaderValue.
func ParseHeader(value string) (BasicAuth, error) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return BasicAuth{}, ErrMalformed
	}
	return ParseToken(strings.TrimSpace(rest))
}

// ParseToken decodes a token produced by QueryToken.
func ParseToken(token string) (BasicAuth, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return BasicAuth{}, ErrMalformed
	}
	// The user part cannot contain a colon; the password may.
	user, pass, found := strings.Cut(string(raw), ":")
	if !found {
		return BasicAuth{}, ErrMalformed
	}
	return BasicAuth{User: user, Pass: pass}, nil
}

func encode(b BasicAuth) string {
	return base64.StdEncoding.EncodeToString([]byte(b.User + ":" + b.Pass))
}
