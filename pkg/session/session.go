// Package session persists the signed-in browser state the Search Console
// check depends on.
//
// The state is Playwright's storage-state JSON. It is considered valid when
// it holds an unexpired Google authentication cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/browser"
	"github.com/franzenzenhofer/automated-seo-tests/pkg/steps"
)

var (
	// ErrNoSession is returned when no stored session exists.
	ErrNoSession = errors.New("no stored session")

	// ErrSessionInvalid is returned when the stored session is unusable.
	ErrSessionInvalid = errors.New("stored session is invalid")
)

// SignInURL is where interactive recovery sends the operator.
const SignInURL = "https://accounts.google.com/signin"

// authCookies are the cookies that mark a signed-in Google account.
var authCookies = map[string]bool{
	"SID":            true,
	"__Secure-1PSID": true,
	"__Secure-3PSID": true,
}

// Store reads and writes the storage state at one path.
type Store struct {
	fs   afero.Fs
	path string
	now  func() time.Time
	log  logrus.FieldLogger
}

// NewStore creates a Store for path.
func NewStore(fs afero.Fs, path string, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{fs: fs, path: path, now: time.Now, log: log}
}

// WithClock replaces the clock used to judge cookie expiry.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Path returns the storage state path.
func (s *Store) Path() string {
	return s.path
}

// Check verifies the stored session.
func (s *Store) Check() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if exists, _ := afero.Exists(s.fs, s.path); !exists {
			return ErrNoSession
		}
		return fmt.Errorf("failed to read session: %w", err)
	}
	return s.validate(data)
}

func (s *Store) validate(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: not valid JSON", ErrSessionInvalid)
	}

	cookies := gjson.GetBytes(data, "cookies")
	if !cookies.IsArray() {
		return fmt.Errorf("%w: no cookies", ErrSessionInvalid)
	}

	now := float64(s.now().Unix())
	found := false
	cookies.ForEach(func(_, c gjson.Result) bool {
		if !authCookies[c.Get("name").String()] {
			return true
		}
		// -1 marks a session cookie
		expires := c.Get("expires")
		if !expires.Exists() || expires.Float() == -1 || expires.Float() > now {
			found = true
			return false
		}
		return true
	})

	if !found {
		return fmt.Errorf("%w: no unexpired Google sign-in cookie", ErrSessionInvalid)
	}
	return nil
}

// Save stores a storage state after validating it.
func (s *Store) Save(state []byte) error {
	if err := s.validate(state); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, state, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Ensure returns nil when the stored session is valid. Otherwise it opens
// the sign-in page, waits for the operator to sign in and stores the new
// state. A session that is still invalid afterwards yields ErrSessionInvalid.
func (s *Store) Ensure(ctx context.Context, b browser.Browser, op steps.Operator) error {
	err := s.Check()
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNoSession) && !errors.Is(err, ErrSessionInvalid) {
		return err
	}

	s.log.WithError(err).Warn("Session needs to be refreshed, starting interactive sign-in")

	page, err := b.NewPage(browser.PageOptions{Device: browser.Desktop})
	if err != nil {
		return fmt.Errorf("failed to open sign-in page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			s.log.WithError(cerr).Warn("Failed to close sign-in page")
		}
	}()

	if err := page.Navigate(SignInURL, browser.NavigateOptions{WaitUntil: browser.WaitLoad}); err != nil {
		return fmt.Errorf("failed to open sign-in page: %w", err)
	}
	if err := op.Acknowledge(ctx, "Sign in to the Google account with Search Console access, then continue."); err != nil {
		return err
	}

	state, err := page.StorageState()
	if err != nil {
		return fmt.Errorf("failed to read browser session: %w", err)
	}
	if err := s.Save(state); err != nil {
		return err
	}

	s.log.WithField("path", s.path).Info("Session stored")
	return nil
}
