package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
)

const (
	redirectPort = "8089"
	callbackPath = "/callback"
)

// newCallbackHandler returns an HTTP handler that processes the OAuth callback.
func newCallbackHandler(expectedState string, codeChan chan<- string, errChan chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != expectedState {
			errChan <- errors.New("state mismatch: possible CSRF attack")
			http.Error(w, "Error: state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			errChan <- fmt.Errorf("authorization denied: %s", e)
			fmt.Fprintf(w, "Authorization was not granted. You can close this window.")
			return
		}
		code := q.Get("code")
		if code == "" {
			errChan <- errors.New("no code in callback")
			http.Error(w, "Error: no authorization code received", http.StatusBadRequest)
			return
		}
		codeChan <- code
		fmt.Fprintf(w, "Signed in to CodeNexus Admin. You can close this window.")
	}
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// browserFlow runs the authorization code flow with a localhost callback.
func (m *Manager) browserFlow(ctx context.Context) (*oauth2.Token, error) {
	state, err := newState()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", "localhost:"+redirectPort)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle(callbackPath, newCallbackHandler(state, codeChan, errChan))
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()
	defer func() { _ = server.Shutdown(context.WithoutCancel(ctx)) }()

	cfg := *m.config
	cfg.RedirectURL = "http://localhost:" + redirectPort + callbackPath
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintf(m.out, "Opening browser for sign-in...\n")
	fmt.Fprintf(m.out, "If the browser doesn't open, visit:\n%s\n\n", authURL)
	if err := m.openURL(ctx, authURL); err != nil {
		m.logger.Warn("failed to open browser", "error", err)
	}

	select {
	case code := <-codeChan:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchange code: %w", err)
		}
		return tok, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
