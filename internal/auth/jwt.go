// Package auth verifies admin bearer tokens issued by the auth provider.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gymii/dashboard/internal/model"
)

// DefaultAudience is the audience the auth provider puts on user tokens.
const DefaultAudience = "authenticated"

// Verification errors. Middleware maps each to a status code.
var (
	ErrMissingSecret = errors.New("jwt secret not configured")
	ErrTokenExpired  = errors.New("token has expired")
	ErrInvalidToken  = errors.New("invalid token")
	ErrNotAdmin      = errors.New("email not authorized")
)

// Claims are the fields read from an auth provider access token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens and the admin allow-list.
type Verifier struct {
	secret   []byte
	audience string
	admins   []string
}

// NewVerifier creates a Verifier. Emails are compared case-insensitively.
func NewVerifier(secret, audience string, adminEmails []string) *Verifier {
	if audience == "" {
		audience = DefaultAudience
	}
	admins := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins = append(admins, e)
		}
	}
	return &Verifier{
		secret:   []byte(secret),
		audience: audience,
		admins:   admins,
	}
}

// Parse validates signature, expiry and audience.
func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithAudience(v.audience), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsAdmin reports whether email is on the allow-list.
func (v *Verifier) IsAdmin(email string) bool {
	return slices.Contains(v.admins, strings.ToLower(strings.TrimSpace(email)))
}

// Authenticate parses the token and requires an allow-listed email.
func (v *Verifier) Authenticate(tokenStr string) (*model.AuthContext, error) {
	claims, err := v.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if !v.IsAdmin(claims.Email) {
		return nil, ErrNotAdmin
	}

	ac := &model.AuthContext{
		Subject: claims.Subject,
		Email:   strings.ToLower(claims.Email),
		Role:    claims.Role,
	}
	if claims.ExpiresAt != nil {
		ac.ExpiresAt = claims.ExpiresAt.Time
	}
	return ac, nil
}

// Issue signs a token shaped like the auth provider's. Used by tests and
// the local seeding command.
func (v *Verifier) Issue(subject, email string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}
	if subject == "" {
		subject = uuid.NewString()
	}

	now := time.Now().UTC()
	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
