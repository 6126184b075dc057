package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/fileutil"
)

// SessionTTL is how long a login stays valid.
const SessionTTL = 24 * time.Hour

// ErrNoSession is returned when there is no valid admin session.
var ErrNoSession = errors.New("not logged in (run login)")

// Session records the verified admin identity.
type Session struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExpiresAt returns when the session stops being valid.
func (s Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(SessionTTL)
}

// sessionFile reads and writes the session on disk.
type sessionFile struct {
	path string
	now  func() time.Time
}

// load returns the stored session. An expired or unreadable session is
// deleted and reported as ErrNoSession.
func (f sessionFile) load() (Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil || s.Email == "" || s.CreatedAt.IsZero() {
		f.clear()
		return Session{}, ErrNoSession
	}
	if !f.now().Before(s.ExpiresAt()) {
		f.clear()
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (f sessionFile) save(s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WritePrivate(f.path, data)
}

func (f sessionFile) clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
