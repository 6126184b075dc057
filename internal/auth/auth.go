// Package auth signs the admin in with Google and keeps the session and
// OAuth token used to reach the document store.
//
// Exactly one account may use the tool. Its email is compared verbatim
// against the verified ID token; there is no role lookup.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/vstopensource-gif/CodeNexus-Admin/internal/compose"
	"github.com/vstopensource-gif/CodeNexus-Admin/internal/fileutil"
)

// Scopes requested at sign-in: identity plus Firestore access.
var Scopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/datastore",
}

// ErrNotAdmin is returned when the signed-in account is not the admin.
var ErrNotAdmin = errors.New("access denied: account is not the configured admin")

// Manager handles sign-in, the admin session and the stored token.
type Manager struct {
	config     *oauth2.Config
	adminEmail string
	tokenPath  string
	session    sessionFile
	verifier   Verifier
	openURL    func(ctx context.Context, url string) error
	out        io.Writer
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithVerifier replaces OIDC discovery against Google.
func WithVerifier(v Verifier) Option {
	return func(m *Manager) {
		m.verifier = v
	}
}

// WithClock overrides the time source for session expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.session.now = now
	}
}

// WithOutput sets where sign-in instructions are printed.
func WithOutput(w io.Writer) Option {
	return func(m *Manager) {
		m.out = w
	}
}

// WithBrowser overrides how the consent page is opened.
func WithBrowser(open func(ctx context.Context, url string) error) Option {
	return func(m *Manager) {
		m.openURL = open
	}
}

// NewManager creates a Manager from a Google client secrets file.
func NewManager(clientSecretsPath, adminEmail, tokenPath, sessionPath string, opts ...Option) (*Manager, error) {
	data, err := os.ReadFile(clientSecretsPath)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	config, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	return newManager(config, adminEmail, tokenPath, sessionPath, opts...), nil
}

func newManager(config *oauth2.Config, adminEmail, tokenPath, sessionPath string, opts ...Option) *Manager {
	m := &Manager{
		config:     config,
		adminEmail: adminEmail,
		tokenPath:  tokenPath,
		session:    sessionFile{path: sessionPath, now: time.Now},
		openURL:    compose.BrowserLauncher{}.Launch,
		out:        os.Stdout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsAdmin reports whether email is exactly the configured admin address.
func (m *Manager) IsAdmin(email string) bool {
	return m.adminEmail != "" && email == m.adminEmail
}

// Login runs the browser sign-in, verifies the identity and stores the
// session and token. A non-admin sign-in stores nothing.
func (m *Manager) Login(ctx context.Context) (Session, error) {
	if m.adminEmail == "" {
		return Session{}, errors.New("admin email is not configured")
	}
	token, err := m.browserFlow(ctx)
	if err != nil {
		return Session{}, err
	}
	return m.complete(ctx, token)
}

// complete verifies a freshly issued token and persists the login.
func (m *Manager) complete(ctx context.Context, token *oauth2.Token) (Session, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return Session{}, errors.New("token response has no id_token")
	}

	v := m.verifier
	if v == nil {
		var err error
		v, err = NewOIDCVerifier(ctx, GoogleIssuer, m.config.ClientID)
		if err != nil {
			return Session{}, err
		}
	}
	id, err := v.Verify(ctx, raw)
	if err != nil {
		return Session{}, err
	}
	if !id.EmailVerified {
		m.logger.Warn("rejected sign-in, email not verified", "email", id.Email)
		return Session{}, fmt.Errorf("%w: %s is not a verified address", ErrNotAdmin, id.Email)
	}
	if !m.IsAdmin(id.Email) {
		m.logger.Warn("rejected sign-in", "email", id.Email)
		return Session{}, fmt.Errorf("%w: %s", ErrNotAdmin, id.Email)
	}

	if err := m.saveToken(token); err != nil {
		return Session{}, fmt.Errorf("save token: %w", err)
	}
	s := Session{Email: id.Email, Name: id.Name, Subject: id.Subject, CreatedAt: m.session.now()}
	if err := m.session.save(s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	m.logger.Info("signed in", "email", s.Email)
	return s, nil
}

// Current returns the active session or ErrNoSession. A session whose
// email no longer matches the configured admin is discarded.
func (m *Manager) Current() (Session, error) {
	s, err := m.session.load()
	if err != nil {
		return Session{}, err
	}
	if !m.IsAdmin(s.Email) {
		m.logger.Warn("discarding session for non-admin account", "email", s.Email)
		_ = m.Logout()
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Logout deletes the session and the stored token.
func (m *Manager) Logout() error {
	if err := m.session.clear(); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	if err := os.Remove(m.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// TokenSource returns an auto-refreshing token source for the admin.
// It requires a valid session.
func (m *Manager) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if _, err := m.Current(); err != nil {
		return nil, err
	}
	token, err := m.loadToken()
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	ts := m.config.TokenSource(ctx, token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.AccessToken != token.AccessToken {
		if err := m.saveToken(fresh); err != nil {
			m.logger.Warn("failed to save refreshed token", "error", err)
		}
	}
	return oauth2.ReuseTokenSource(fresh, ts), nil
}

func (m *Manager) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(m.tokenPath)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (m *Manager) saveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WritePrivate(m.tokenPath, data)
}
