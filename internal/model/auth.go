package model

import "time"

// AuthContext holds the verified admin identity for a request.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
}
