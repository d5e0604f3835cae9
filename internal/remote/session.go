package remote

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// session holds the bearer token for the remote store. Tokens issued by the
// backend are JWTs; expiry is read from the unverified claims (the client
// has no verification key and only needs to know whether the token is still
// worth presenting).
type session struct {
	mu    sync.RWMutex
	token string

	// now is a test seam for the clock.
	now func() time.Time
}

func newSession(token string) *session {
	return &session{token: token, now: time.Now}
}

func (s *session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Active reports whether a token is present and not yet expired. A token
// that does not parse as a JWT is treated as inactive; a JWT without an exp
// claim is treated as active.
func (s *session) Active() bool {
	token := s.Token()
	if token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return exp.After(s.now())
}
