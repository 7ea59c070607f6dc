// Package tokenstore persists the single session token as a cookie-style entry on disk.
//
// The file holds one Set-Cookie line for a cookie named "token". Every read re-parses
// the file, so a token written by one process is visible to the next until it expires.
package tokenstore

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// CookieName is the persisted entry's name.
	CookieName = "token"
	// DefaultTTLDays applies when SetToken is given a non-positive ttl.
	DefaultTTLDays = 7
)

// Store reads and writes the session token file.
type Store struct {
	path   string
	secure bool
	now    func() time.Time
	log    *zap.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides time.Now, used for expiry.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// New returns a store backed by the file at path. secure marks entries for
// encrypted transport only.
func New(path string, secure bool, opts ...Option) *Store {
	s := &Store{path: path, secure: secure, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// SetToken writes tok with an expiry ttlDays from now, replacing any previous token.
func (s *Store) SetToken(tok string, ttlDays int) error {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	c := &http.Cookie{
		Name:     CookieName,
		Value:    url.QueryEscape(tok),
		Path:     "/",
		Expires:  s.now().Add(time.Duration(ttlDays) * 24 * time.Hour).UTC(),
		SameSite: http.SameSiteStrictMode,
		Secure:   s.secure,
	}
	line := c.String()
	if line == "" {
		return errors.New("tokenstore: unable to encode cookie")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("tokenstore: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(line+"\n"), 0o600); err != nil {
		return fmt.Errorf("tokenstore: %w", err)
	}
	s.log.Debug("token stored", zap.Time("expires", c.Expires), zap.Bool("secure", c.Secure))
	return nil
}

// Token returns the persisted token if present and not expired.
func (s *Store) Token() (string, bool) {
	c, err := s.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("token unreadable", zap.Error(err))
		}
		return "", false
	}
	if !c.Expires.IsZero() && !s.now().Before(c.Expires) {
		return "", false
	}
	tok, err := url.QueryUnescape(c.Value)
	if err != nil || tok == "" {
		return "", false
	}
	return tok, true
}

// Clear removes the persisted token. Missing files are not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokenstore: %w", err)
	}
	return nil
}

// Session describes the stored token for diagnostics.
type Session struct {
	Token     string
	ExpiresAt time.Time // persisted entry expiry
	Secure    bool
	Subject   string    // JWT "sub", unverified
	TokenExp  time.Time // JWT "exp", unverified; zero when absent
}

// Inspect returns the current session, decoding JWT claims without verifying them.
func (s *Store) Inspect() (Session, bool) {
	tok, ok := s.Token()
	if !ok {
		return Session{}, false
	}
	c, err := s.read()
	if err != nil {
		return Session{}, false
	}
	sess := Session{Token: tok, ExpiresAt: c.Expires, Secure: c.Secure}

	var claims jwt.RegisteredClaims
	_, _, err = jwt.NewParser().ParseUnverified(tok, &claims)
	if err == nil {
		sess.Subject = claims.Subject
		if claims.ExpiresAt != nil {
			sess.TokenExp = claims.ExpiresAt.Time
		}
	}
	return sess, true
}

func (s *Store) read() (*http.Cookie, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	c, err := http.ParseSetCookie(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, err
	}
	if c.Name != CookieName {
		return nil, fmt.Errorf("unexpected entry %q", c.Name)
	}
	return c, nil
}
