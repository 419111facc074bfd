// Package session logs admins in through the auth provider and keeps the
// resulting session on disk between CLI invocations.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gymii/dashboard/internal/errreport"
)

// StorageKey is the key the session is stored under in the session file.
const StorageKey = "supabase-auth"

// refreshSkew renews tokens this long before they actually expire.
const refreshSkew = 30 * time.Second

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid login credentials")
)

// User is the signed-in identity.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// Session is what the auth provider returns on login.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expired reports whether the access token is at or past expiry.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt > 0 && now.Unix() >= s.ExpiresAt
}

// Config configures a Store.
type Config struct {
	SupabaseURL string
	AnonKey     string
	// Path is the session file.
	Path       string
	HTTPClient *http.Client
}

// Store wraps the auth provider and the session file.
type Store struct {
	authURL *url.URL
	anonKey string
	path    string
	http    *http.Client
	now     func() time.Time

	mu      sync.Mutex
	current *Session
}

// New validates cfg. Failures wrap errreport.ErrInit.
func New(cfg Config) (*Store, error) {
	if cfg.SupabaseURL == "" || cfg.AnonKey == "" {
		return nil, fmt.Errorf("%w: Supabase URL and anon key must be defined in environment variables", errreport.ErrInit)
	}
	u, err := url.Parse(strings.TrimRight(cfg.SupabaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid Supabase URL %q", errreport.ErrInit, cfg.SupabaseURL)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: session path is empty", errreport.ErrInit)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Store{
		authURL: u,
		anonKey: cfg.AnonKey,
		path:    cfg.Path,
		http:    cfg.HTTPClient,
		now:     time.Now,
	}, nil
}

// Login exchanges email and password for a session and persists it.
func (s *Store) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	sess, err := s.token(ctx, "password", body)
	if err != nil {
		return nil, err
	}
	if err := s.save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout revokes the session at the provider, best effort, and removes the file.
func (s *Store) Logout(ctx context.Context) error {
	sess, err := s.Current()
	if err != nil && !errors.Is(err, ErrNotLoggedIn) {
		return err
	}
	if sess != nil {
		req, err := s.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
			if resp, err := s.http.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Current returns the stored session without contacting the provider.
func (s *Store) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.current, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var file map[string]json.RawMessage
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	raw, ok := file[StorageKey]
	if !ok {
		return nil, ErrNotLoggedIn
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.AccessToken == "" {
		return nil, ErrNotLoggedIn
	}

	s.current = &sess
	return &sess, nil
}

// AccessToken returns a usable bearer token, refreshing it when it is
// about to expire.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	sess, err := s.Current()
	if err != nil {
		return "", err
	}
	if !sess.Expired(s.now().Add(refreshSkew)) {
		return sess.AccessToken, nil
	}
	if sess.RefreshToken == "" {
		return "", ErrNotLoggedIn
	}

	fresh, err := s.token(ctx, "refresh_token", map[string]string{"refresh_token": sess.RefreshToken})
	if err != nil {
		return "", fmt.Errorf("refresh session: %w", err)
	}
	if err := s.save(fresh); err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID           string         `json:"id"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"user_metadata"`
	} `json:"user"`
}

type providerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e providerError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (s *Store) token(ctx context.Context, grant string, body map[string]string) (*Session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := s.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type="+grant, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Authentication request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var perr providerError
		_ = json.Unmarshal(data, &perr)
		if resp.StatusCode == http.StatusBadRequest && grant == "password" {
			return nil, ErrInvalidCredentials
		}
		msg := perr.text()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("Authentication failed: %s", msg)
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	return s.toSession(tr), nil
}

func (s *Store) toSession(tr tokenResponse) *Session {
	expiresAt := tr.ExpiresAt
	if expiresAt == 0 && tr.ExpiresIn > 0 {
		expiresAt = s.now().Unix() + tr.ExpiresIn
	}

	meta := func(key, fallback string) string {
		if v, ok := tr.User.UserMetadata[key].(string); ok && v != "" {
			return v
		}
		return fallback
	}

	return &Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    expiresAt,
		User: User{
			ID:     tr.User.ID,
			Email:  tr.User.Email,
			Name:   meta("name", "User"),
			Role:   meta("role", "user"),
			Avatar: meta("avatar", ""),
		},
	}
}

func (s *Store) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.authURL.String()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (s *Store) save(sess *Session) error {
	data, err := json.MarshalIndent(map[string]*Session{StorageKey: sess}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return nil
}
